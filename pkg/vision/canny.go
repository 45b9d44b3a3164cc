package vision

import "math"

const edgeOn = 255

func sobel(g *Gray, x, y int) (float64, float64) {
	p := func(dx, dy int) float64 {
		return float64(g.Clamped(x+dx, y+dy))
	}
	gx := p(1, -1) + 2*p(1, 0) + p(1, 1) - p(-1, -1) - 2*p(-1, 0) - p(-1, 1)
	gy := p(-1, 1) + 2*p(0, 1) + p(1, 1) - p(-1, -1) - 2*p(0, -1) - p(1, -1)
	return gx, gy
}

// canny produces a binary edge map (0 or 255) using L1 gradient magnitude,
// four-direction non-maximum suppression and hysteresis thresholding.
func canny(g *Gray, low, high float64) *Gray {
	w, h := g.Width, g.Height
	mag := make([]float64, w*h)
	dir := make([]uint8, w*h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx, gy := sobel(g, x, y)
			i := y*w + x
			mag[i] = math.Abs(gx) + math.Abs(gy)
			dir[i] = quantizeDirection(gx, gy)
		}
	}

	magAt := func(x, y int) float64 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return mag[y*w+x]
	}

	thin := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			m := mag[i]
			if m < low {
				continue
			}

			var a, b float64
			switch dir[i] {
			case 0:
				a, b = magAt(x-1, y), magAt(x+1, y)
			case 1:
				a, b = magAt(x-1, y-1), magAt(x+1, y+1)
			case 2:
				a, b = magAt(x, y-1), magAt(x, y+1)
			default:
				a, b = magAt(x+1, y-1), magAt(x-1, y+1)
			}

			if m > a && m >= b {
				thin[i] = m
			}
		}
	}

	out := NewGray(w, h)
	stack := make([]int, 0, 1024)
	for i, m := range thin {
		if m >= high {
			out.Pix[i] = edgeOn
			stack = append(stack, i)
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if out.Pix[j] == 0 && thin[j] >= low {
					out.Pix[j] = edgeOn
					stack = append(stack, j)
				}
			}
		}
	}

	return out
}

// quantizeDirection maps the gradient angle onto 0, 45, 90 or 135 degrees.
func quantizeDirection(gx, gy float64) uint8 {
	angle := math.Atan2(gy, gx) * 180 / math.Pi
	if angle < 0 {
		angle += 180
	}

	switch {
	case angle < 22.5 || angle >= 157.5:
		return 0
	case angle < 67.5:
		return 1
	case angle < 112.5:
		return 2
	default:
		return 3
	}
}

func dilate3x3(g *Gray) *Gray {
	w, h := g.Width, g.Height
	out := NewGray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if g.Pix[y*w+x] == 0 {
				continue
			}
			for dy := -1; dy <= 1; dy++ {
				ny := y + dy
				if ny < 0 || ny >= h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					nx := x + dx
					if nx < 0 || nx >= w {
						continue
					}
					out.Pix[ny*w+nx] = edgeOn
				}
			}
		}
	}
	return out
}
