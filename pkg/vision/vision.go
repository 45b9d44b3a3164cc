package vision

import (
	"errors"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"
)

var (
	ErrEmptyImage     = errors.New("vision: empty image")
	ErrSizeMismatch   = errors.New("vision: frame sizes differ")
	ErrUnknownBackend = errors.New("vision: unknown backend")
)

// Backend is the set of numeric kernels the belt pipeline relies on.
// Implementations must be safe to call from one goroutine per camera.
type Backend interface {
	Name() string
	Grayscale(img image.Image) (*Gray, error)
	ExtractLines(g *Gray, p LineParams) ([]Segment, error)
	DenseFlow(prev, next *Gray) (*Flow, error)
	FindContours(g *Gray, p ContourParams) (*ContourSet, error)
}

// LineParams configures edge extraction and the probabilistic line transform.
type LineParams struct {
	BlurSigma     float64
	CannyLow      float64
	CannyHigh     float64
	Rho           float64
	Theta         float64
	Threshold     int
	MinLineLength int
	MaxLineGap    int
}

func DefaultLineParams(height int) LineParams {
	return LineParams{
		BlurSigma:     1.1,
		CannyLow:      50,
		CannyHigh:     150,
		Rho:           1,
		Theta:         math.Pi / 180,
		Threshold:     100,
		MinLineLength: height / 3,
		MaxLineGap:    50,
	}
}

type ContourParams struct {
	ClipLimit float64
	TileGrid  int
	CannyLow  float64
	CannyHigh float64
}

func DefaultContourParams() ContourParams {
	return ContourParams{
		ClipLimit: 2.0,
		TileGrid:  8,
		CannyLow:  50,
		CannyHigh: 150,
	}
}

// Segment is a straight line segment in pixel coordinates.
type Segment struct {
	X1, Y1, X2, Y2 int
}

func (s Segment) Length() float64 {
	return math.Hypot(float64(s.X2-s.X1), float64(s.Y2-s.Y1))
}

// Flow holds displacement vectors sampled on a regular grid of Step pixels.
type Flow struct {
	Cols int
	Rows int
	Step int
	DX   []float32
	DY   []float32
}

func (f *Flow) Len() int {
	if f == nil {
		return 0
	}
	return len(f.DX)
}

type Contour []image.Point

type ContourSet struct {
	Enhanced *Gray
	Contours []Contour
}

// Gray is an 8-bit single channel plane stored row-major.
type Gray struct {
	Pix    []uint8
	Width  int
	Height int
}

func NewGray(width, height int) *Gray {
	return &Gray{
		Pix:    make([]uint8, width*height),
		Width:  width,
		Height: height,
	}
}

func (g *Gray) Empty() bool {
	return g == nil || g.Width <= 0 || g.Height <= 0 || len(g.Pix) < g.Width*g.Height
}

func (g *Gray) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.Width, g.Height)
}

func (g *Gray) At(x, y int) uint8 {
	return g.Pix[y*g.Width+x]
}

// Clamped reads a pixel, replicating the border for out of range coordinates.
func (g *Gray) Clamped(x, y int) uint8 {
	if x < 0 {
		x = 0
	} else if x >= g.Width {
		x = g.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= g.Height {
		y = g.Height - 1
	}
	return g.Pix[y*g.Width+x]
}

func (g *Gray) Clone() *Gray {
	out := NewGray(g.Width, g.Height)
	copy(out.Pix, g.Pix)
	return out
}

// Image exposes the plane as an *image.Gray without copying.
func (g *Gray) Image() *image.Gray {
	return &image.Gray{
		Pix:    g.Pix,
		Stride: g.Width,
		Rect:   g.Bounds(),
	}
}

// FromImage converts any decoded image to luma.
func FromImage(img image.Image) (*Gray, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyImage
	}

	if src, ok := img.(*image.Gray); ok {
		out := NewGray(b.Dx(), b.Dy())
		for y := 0; y < b.Dy(); y++ {
			row := src.Pix[(y+b.Min.Y-src.Rect.Min.Y)*src.Stride+(b.Min.X-src.Rect.Min.X):]
			copy(out.Pix[y*out.Width:(y+1)*out.Width], row[:b.Dx()])
		}
		return out, nil
	}

	return fromNRGBA(imaging.Grayscale(img)), nil
}

func fromNRGBA(img *image.NRGBA) *Gray {
	b := img.Bounds()
	out := NewGray(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < b.Dx(); x++ {
			out.Pix[y*out.Width+x] = row[x*4]
		}
	}
	return out
}

// ByName resolves a configured backend name.
func ByName(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return Default(), nil
	case "native":
		return NewNative(), nil
	case "gocv", "opencv":
		return newGoCV()
	default:
		return nil, ErrUnknownBackend
	}
}
