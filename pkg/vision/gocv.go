//go:build gocv

package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// GoCV runs the kernels through OpenCV. Build with -tags gocv.
type GoCV struct{}

func Default() Backend {
	return &GoCV{}
}

func newGoCV() (Backend, error) {
	return &GoCV{}, nil
}

func (b *GoCV) Name() string {
	return "gocv"
}

func (b *GoCV) Grayscale(img image.Image) (*Gray, error) {
	return FromImage(img)
}

func toMat(g *Gray) (gocv.Mat, error) {
	return gocv.NewMatFromBytes(g.Height, g.Width, gocv.MatTypeCV8U, g.Pix)
}

func fromMat(m gocv.Mat) (*Gray, error) {
	buf, err := m.DataPtrUint8()
	if err != nil {
		return nil, err
	}
	out := NewGray(m.Cols(), m.Rows())
	copy(out.Pix, buf)
	return out, nil
}

func (b *GoCV) ExtractLines(g *Gray, p LineParams) ([]Segment, error) {
	if g.Empty() {
		return nil, ErrEmptyImage
	}

	src, err := toMat(g)
	if err != nil {
		return nil, fmt.Errorf("gocv: load frame: %w", err)
	}
	defer src.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	if err := gocv.GaussianBlur(src, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault); err != nil {
		return nil, err
	}

	edges := gocv.NewMat()
	defer edges.Close()
	if err := gocv.Canny(blurred, &edges, float32(p.CannyLow), float32(p.CannyHigh)); err != nil {
		return nil, err
	}

	lines := gocv.NewMat()
	defer lines.Close()
	if err := gocv.HoughLinesPWithParams(edges, &lines, float32(p.Rho), float32(p.Theta), p.Threshold,
		float32(p.MinLineLength), float32(p.MaxLineGap)); err != nil {
		return nil, err
	}

	segments := make([]Segment, 0, lines.Rows())
	for i := 0; i < lines.Rows(); i++ {
		v := lines.GetVeciAt(i, 0)
		if len(v) < 4 {
			continue
		}
		segments = append(segments, Segment{X1: int(v[0]), Y1: int(v[1]), X2: int(v[2]), Y2: int(v[3])})
	}
	return segments, nil
}

func (b *GoCV) DenseFlow(prev, next *Gray) (*Flow, error) {
	if prev.Empty() || next.Empty() {
		return nil, ErrEmptyImage
	}
	if prev.Width != next.Width || prev.Height != next.Height {
		return nil, ErrSizeMismatch
	}

	p, err := toMat(prev)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	n, err := toMat(next)
	if err != nil {
		return nil, err
	}
	defer n.Close()

	flowMat := gocv.NewMat()
	defer flowMat.Close()
	if err := gocv.CalcOpticalFlowFarneback(p, n, &flowMat, 0.5, 3, 15, 3, 5, 1.2, 0); err != nil {
		return nil, err
	}

	data, err := flowMat.DataPtrFloat32()
	if err != nil {
		return nil, err
	}

	out := &Flow{
		Cols: prev.Width,
		Rows: prev.Height,
		Step: 1,
		DX:   make([]float32, prev.Width*prev.Height),
		DY:   make([]float32, prev.Width*prev.Height),
	}
	for i := range out.DX {
		out.DX[i] = data[2*i]
		out.DY[i] = data[2*i+1]
	}
	return out, nil
}

func (b *GoCV) FindContours(g *Gray, p ContourParams) (*ContourSet, error) {
	if g.Empty() {
		return nil, ErrEmptyImage
	}

	src, err := toMat(g)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	clahe := gocv.NewCLAHEWithParams(p.ClipLimit, image.Pt(p.TileGrid, p.TileGrid))
	defer clahe.Close()

	equalized := gocv.NewMat()
	defer equalized.Close()
	if err := clahe.Apply(src, &equalized); err != nil {
		return nil, err
	}

	smoothed := gocv.NewMat()
	defer smoothed.Close()
	if err := gocv.BilateralFilter(equalized, &smoothed, 9, 75, 75); err != nil {
		return nil, err
	}

	edges := gocv.NewMat()
	defer edges.Close()
	if err := gocv.Canny(smoothed, &edges, float32(p.CannyLow), float32(p.CannyHigh)); err != nil {
		return nil, err
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	dilated := gocv.NewMat()
	defer dilated.Close()
	if err := gocv.Dilate(edges, &dilated, kernel); err != nil {
		return nil, err
	}

	found := gocv.FindContours(dilated, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer found.Close()

	enhanced, err := fromMat(smoothed)
	if err != nil {
		return nil, err
	}

	set := &ContourSet{Enhanced: enhanced}
	for i := 0; i < found.Size(); i++ {
		set.Contours = append(set.Contours, Contour(found.At(i).ToPoints()))
	}
	return set, nil
}
