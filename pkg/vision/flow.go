package vision

import "math"

type flowParams struct {
	step       int
	radius     int
	levels     int
	iterations int
	minEigen   float64
	epsilon    float64
}

func defaultFlowParams() flowParams {
	return flowParams{
		step:       8,
		radius:     7,
		levels:     3,
		iterations: 5,
		minEigen:   1e-2,
		epsilon:    0.01,
	}
}

type plane struct {
	w, h int
	v    []float32
}

func planeFromGray(g *Gray) *plane {
	p := &plane{w: g.Width, h: g.Height, v: make([]float32, len(g.Pix))}
	for i, px := range g.Pix {
		p.v[i] = float32(px)
	}
	return p
}

func (p *plane) at(x, y int) float32 {
	if x < 0 {
		x = 0
	} else if x >= p.w {
		x = p.w - 1
	}
	if y < 0 {
		y = 0
	} else if y >= p.h {
		y = p.h - 1
	}
	return p.v[y*p.w+x]
}

func (p *plane) sample(x, y float64) float64 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	ax := x - float64(x0)
	ay := y - float64(y0)

	top := float64(p.at(x0, y0))*(1-ax) + float64(p.at(x0+1, y0))*ax
	bottom := float64(p.at(x0, y0+1))*(1-ax) + float64(p.at(x0+1, y0+1))*ax
	return top*(1-ay) + bottom*ay
}

func (p *plane) downsample() *plane {
	w, h := (p.w+1)/2, (p.h+1)/2
	out := &plane{w: w, h: h, v: make([]float32, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := p.at(2*x, 2*y) + p.at(2*x+1, 2*y) + p.at(2*x, 2*y+1) + p.at(2*x+1, 2*y+1)
			out.v[y*w+x] = sum / 4
		}
	}
	return out
}

func pyramid(g *Gray, levels int) []*plane {
	out := []*plane{planeFromGray(g)}
	for l := 1; l < levels; l++ {
		prev := out[l-1]
		if prev.w < 16 || prev.h < 16 {
			break
		}
		out = append(out, prev.downsample())
	}
	return out
}

// lucasKanade tracks a regular grid of points from prev to next with the
// pyramidal Lucas-Kanade method. Points whose window has too little texture
// keep a zero displacement.
func lucasKanade(prev, next *Gray, fp flowParams) *Flow {
	prevPyr := pyramid(prev, fp.levels)
	nextPyr := pyramid(next, fp.levels)
	levels := len(prevPyr)

	cols := (prev.Width + fp.step - 1) / fp.step
	rows := (prev.Height + fp.step - 1) / fp.step
	flow := &Flow{
		Cols: cols,
		Rows: rows,
		Step: fp.step,
		DX:   make([]float32, cols*rows),
		DY:   make([]float32, cols*rows),
	}

	for gy := 0; gy < rows; gy++ {
		for gx := 0; gx < cols; gx++ {
			px := float64(gx*fp.step + fp.step/2)
			py := float64(gy*fp.step + fp.step/2)

			var guessX, guessY float64
			ok := true
			for l := levels - 1; l >= 0; l-- {
				scale := math.Pow(2, float64(l))
				dx, dy, tracked := trackPoint(prevPyr[l], nextPyr[l], px/scale, py/scale, guessX, guessY, fp)
				if !tracked {
					ok = false
					break
				}
				if l > 0 {
					guessX, guessY = 2*(guessX+dx), 2*(guessY+dy)
				} else {
					guessX, guessY = guessX+dx, guessY+dy
				}
			}

			if ok {
				i := gy*cols + gx
				flow.DX[i] = float32(guessX)
				flow.DY[i] = float32(guessY)
			}
		}
	}

	return flow
}

func trackPoint(prev, next *plane, x, y, guessX, guessY float64, fp flowParams) (float64, float64, bool) {
	r := fp.radius
	size := (2*r + 1) * (2*r + 1)
	ix := make([]float64, 0, size)
	iy := make([]float64, 0, size)
	iv := make([]float64, 0, size)

	var gxx, gxy, gyy float64
	for j := -r; j <= r; j++ {
		for i := -r; i <= r; i++ {
			sx, sy := x+float64(i), y+float64(j)
			dx := (prev.sample(sx+1, sy) - prev.sample(sx-1, sy)) / 2
			dy := (prev.sample(sx, sy+1) - prev.sample(sx, sy-1)) / 2
			ix = append(ix, dx)
			iy = append(iy, dy)
			iv = append(iv, prev.sample(sx, sy))
			gxx += dx * dx
			gxy += dx * dy
			gyy += dy * dy
		}
	}

	det := gxx*gyy - gxy*gxy
	trace := gxx + gyy
	minEigen := (trace - math.Sqrt(math.Max(trace*trace-4*det, 0))) / 2
	if minEigen/float64(size) < fp.minEigen || det == 0 {
		return 0, 0, false
	}

	var vx, vy float64
	for it := 0; it < fp.iterations; it++ {
		var bx, by float64
		k := 0
		for j := -r; j <= r; j++ {
			for i := -r; i <= r; i++ {
				diff := iv[k] - next.sample(x+float64(i)+guessX+vx, y+float64(j)+guessY+vy)
				bx += diff * ix[k]
				by += diff * iy[k]
				k++
			}
		}

		etaX := (gyy*bx - gxy*by) / det
		etaY := (gxx*by - gxy*bx) / det
		vx += etaX
		vy += etaY
		if math.Abs(etaX) < fp.epsilon && math.Abs(etaY) < fp.epsilon {
			break
		}
	}

	return vx, vy, true
}
