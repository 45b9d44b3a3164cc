package vision

import (
	"image"
	"math"
)

// MeanStdDev returns the population mean and standard deviation of the
// pixels inside r. An empty intersection yields zeros.
func (g *Gray) MeanStdDev(r image.Rectangle) (float64, float64) {
	r = r.Intersect(g.Bounds())
	n := r.Dx() * r.Dy()
	if n == 0 {
		return 0, 0
	}

	var sum, sumSq float64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := g.Pix[y*g.Width:]
		for x := r.Min.X; x < r.Max.X; x++ {
			v := float64(row[x])
			sum += v
			sumSq += v * v
		}
	}

	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// GradientMagnitudeMean is the mean Sobel magnitude inside r, computed on the
// region alone with replicated borders.
func (g *Gray) GradientMagnitudeMean(r image.Rectangle) float64 {
	r = r.Intersect(g.Bounds())
	n := r.Dx() * r.Dy()
	if n == 0 {
		return 0
	}

	at := func(x, y int) float64 {
		if x < r.Min.X {
			x = r.Min.X
		} else if x >= r.Max.X {
			x = r.Max.X - 1
		}
		if y < r.Min.Y {
			y = r.Min.Y
		} else if y >= r.Max.Y {
			y = r.Max.Y - 1
		}
		return float64(g.Pix[y*g.Width+x])
	}

	var sum float64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			sum += math.Hypot(gx, gy)
		}
	}
	return sum / float64(n)
}
