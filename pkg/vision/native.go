package vision

import (
	"image"

	"github.com/disintegration/imaging"
)

// Native is a pure Go backend. It trades speed for having no cgo
// dependency, which keeps the default build portable.
type Native struct {
	flow flowParams
}

func NewNative() *Native {
	return &Native{flow: defaultFlowParams()}
}

func (n *Native) Name() string {
	return "native"
}

func (n *Native) Grayscale(img image.Image) (*Gray, error) {
	return FromImage(img)
}

func (n *Native) ExtractLines(g *Gray, p LineParams) ([]Segment, error) {
	if g.Empty() {
		return nil, ErrEmptyImage
	}

	smoothed := g
	if p.BlurSigma > 0 {
		smoothed = fromNRGBA(imaging.Blur(g.Image(), p.BlurSigma))
	}

	edges := canny(smoothed, p.CannyLow, p.CannyHigh)
	return houghSegments(edges, p), nil
}

func (n *Native) DenseFlow(prev, next *Gray) (*Flow, error) {
	if prev.Empty() || next.Empty() {
		return nil, ErrEmptyImage
	}
	if prev.Width != next.Width || prev.Height != next.Height {
		return nil, ErrSizeMismatch
	}
	return lucasKanade(prev, next, n.flow), nil
}

func (n *Native) FindContours(g *Gray, p ContourParams) (*ContourSet, error) {
	if g.Empty() {
		return nil, ErrEmptyImage
	}

	enhanced := clahe(g, p.ClipLimit, p.TileGrid)
	enhanced = bilateral(enhanced, 4, 75, 75)

	edges := dilate3x3(canny(enhanced, p.CannyLow, p.CannyHigh))

	return &ContourSet{
		Enhanced: enhanced,
		Contours: externalContours(edges),
	}, nil
}
