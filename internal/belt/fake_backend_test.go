package belt

import (
	"image"
	"time"

	"ConveyorVision/pkg/vision"
)

type fakeBackend struct {
	segments []vision.Segment
	linesErr error
	panicOn  string

	flow    *vision.Flow
	flowErr error

	contours    []vision.Contour
	enhanced    *vision.Gray
	contoursErr error

	flowCalls int
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Grayscale(img image.Image) (*vision.Gray, error) {
	if f.panicOn == "grayscale" {
		panic("grayscale exploded")
	}
	return vision.FromImage(img)
}

func (f *fakeBackend) ExtractLines(g *vision.Gray, p vision.LineParams) ([]vision.Segment, error) {
	if f.panicOn == "lines" {
		panic("hough exploded")
	}
	return f.segments, f.linesErr
}

func (f *fakeBackend) DenseFlow(prev, next *vision.Gray) (*vision.Flow, error) {
	f.flowCalls++
	if f.panicOn == "flow" {
		panic("flow exploded")
	}
	return f.flow, f.flowErr
}

func (f *fakeBackend) FindContours(g *vision.Gray, p vision.ContourParams) (*vision.ContourSet, error) {
	if f.contoursErr != nil {
		return nil, f.contoursErr
	}
	enhanced := f.enhanced
	if enhanced == nil {
		enhanced = g
	}
	return &vision.ContourSet{Enhanced: enhanced, Contours: f.contours}, nil
}

func uniformFrame(w, h int, v uint8, at time.Time) *Frame {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return &Frame{Image: img, CapturedAt: at}
}

func uniformGray(w, h int, v uint8) *vision.Gray {
	g := vision.NewGray(w, h)
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func fillGray(g *vision.Gray, r image.Rectangle, v uint8) {
	r = r.Intersect(g.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			g.Pix[y*g.Width+x] = v
		}
	}
}

func constantFlow(dx float32, n int) *vision.Flow {
	f := &vision.Flow{Cols: n, Rows: 1, Step: 8, DX: make([]float32, n), DY: make([]float32, n)}
	for i := range f.DX {
		f.DX[i] = dx
	}
	return f
}

// chevron is a thin V shaped contour: long, concave and mostly empty inside
// its bounding box.
func chevron() vision.Contour {
	return vision.Contour{
		{X: 0, Y: 0}, {X: 100, Y: 20}, {X: 200, Y: 0},
		{X: 200, Y: 6}, {X: 100, Y: 26}, {X: 0, Y: 6},
	}
}

func verticalEdges(left, right, height int) []vision.Segment {
	return []vision.Segment{
		{X1: left, Y1: 0, X2: left, Y2: height - 1},
		{X1: right, Y1: 0, X2: right, Y2: height - 1},
	}
}
