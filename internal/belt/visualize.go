package belt

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

var (
	colorWhite  = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	colorGreen  = color.NRGBA{G: 255, A: 255}
	colorYellow = color.NRGBA{R: 255, G: 255, A: 255}
	colorRed    = color.NRGBA{R: 255, A: 255}
	colorOrange = color.NRGBA{R: 255, G: 140, A: 255}
	colorPanel  = color.NRGBA{A: 178}
)

// Visualize draws the readings over a copy of img. It never touches the
// Monitor state, so it can be called with any past result.
func Visualize(img image.Image, r *Result) *image.NRGBA {
	out := imaging.Clone(img)
	if r == nil {
		return out
	}
	b := out.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	strokeLine(out, w/2, 0, w/2, h, 2, colorWhite)

	if r.Alignment.Edges.Complete() {
		left, right := *r.Alignment.Edges.Left, *r.Alignment.Edges.Right
		drawEdge(out, left, h, colorGreen)
		drawEdge(out, right, h, colorGreen)
		center := r.Alignment.BeltCenterX
		strokeLine(out, center, 0, center, h, 3, severityColor(r.Alignment.Severity))
	}

	for _, t := range r.Tear.Tears {
		c := colorOrange
		if r.Tear.Severity == TearCritical {
			c = colorRed
		}
		strokeRect(out, t.Box, 2, c)
	}

	fillRect(out, image.Rect(10, 10, 360, 150), colorPanel)
	status := "STOPPED"
	if r.Speed.IsMoving {
		status = "MOVING"
	}
	alignment := fmt.Sprintf("Alignment: %.1f%% %s", r.Alignment.DeviationPct, r.Alignment.Direction)
	if r.Alignment.Direction == DirectionUnknown {
		alignment = "Alignment: edges not detected"
	}
	lines := []string{
		alignment,
		fmt.Sprintf("Speed: %.2f m/s (%.0f%%)", r.Speed.CurrentMPS, r.Speed.PercentOfNominal),
		fmt.Sprintf("Status: %s", status),
		fmt.Sprintf("Tears: %d (%s)", r.Tear.Count, r.Tear.Severity),
	}
	for i, s := range lines {
		drawText(out, s, 20, 38+i*28, colorWhite)
	}

	if r.Alert != nil {
		fillRect(out, image.Rect(0, 0, b.Dx(), 40), colorRed)
		drawText(out, "! "+r.Alert.Message, 20, 26, colorWhite)
	}

	return out
}

func severityColor(s Severity) color.NRGBA {
	switch s {
	case SeverityNormal:
		return colorGreen
	case SeverityWarning:
		return colorYellow
	default:
		return colorRed
	}
}

// drawEdge extends the representative edge line to the full frame height.
func drawEdge(dst *image.NRGBA, l Line, h float64, c color.NRGBA) {
	if l.Y2 == l.Y1 {
		strokeLine(dst, l.X1, 0, l.X2, h, 2, c)
		return
	}
	slope := (l.X2 - l.X1) / (l.Y2 - l.Y1)
	top := l.X1 - slope*l.Y1
	bottom := l.X1 + slope*(h-l.Y1)
	strokeLine(dst, top, 0, bottom, h, 2, c)
}

func strokeLine(dst *image.NRGBA, x1, y1, x2, y2, width float64, c color.Color) {
	dx, dy := x2-x1, y2-y1
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	nx, ny := -dy/length*width/2, dx/length*width/2

	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.MoveTo(float32(x1+nx), float32(y1+ny))
	z.LineTo(float32(x2+nx), float32(y2+ny))
	z.LineTo(float32(x2-nx), float32(y2-ny))
	z.LineTo(float32(x1-nx), float32(y1-ny))
	z.ClosePath()
	z.Draw(dst, b, image.NewUniform(c), image.Point{})
}

func strokeRect(dst *image.NRGBA, r image.Rectangle, width float64, c color.Color) {
	x0, y0, x1, y1 := float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y)
	strokeLine(dst, x0, y0, x1, y0, width, c)
	strokeLine(dst, x1, y0, x1, y1, width, c)
	strokeLine(dst, x1, y1, x0, y1, width, c)
	strokeLine(dst, x0, y1, x0, y0, width, c)
}

func fillRect(dst *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	draw.Draw(dst, r.Intersect(dst.Bounds()), image.NewUniform(c), image.Point{}, draw.Over)
}

func drawText(dst *image.NRGBA, s string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
