package vision

import "math"

// clahe applies contrast limited adaptive histogram equalisation over a
// grid x grid tiling, blending the four nearest tile mappings bilinearly.
func clahe(g *Gray, clipLimit float64, grid int) *Gray {
	if grid <= 0 {
		grid = 8
	}
	w, h := g.Width, g.Height
	tileW := (w + grid - 1) / grid
	tileH := (h + grid - 1) / grid
	tilesX := (w + tileW - 1) / tileW
	tilesY := (h + tileH - 1) / tileH

	luts := make([][256]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := min(x0+tileW, w), min(y0+tileH, h)
			luts[ty*tilesX+tx] = tileMapping(g, x0, y0, x1, y1, clipLimit)
		}
	}

	out := NewGray(w, h)
	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := int(math.Floor(fy))
		ay := fy - float64(ty0)
		ty1 := ty0 + 1
		ty0 = clampInt(ty0, 0, tilesY-1)
		ty1 = clampInt(ty1, 0, tilesY-1)

		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := int(math.Floor(fx))
			ax := fx - float64(tx0)
			tx1 := tx0 + 1
			tx0 = clampInt(tx0, 0, tilesX-1)
			tx1 = clampInt(tx1, 0, tilesX-1)

			v := g.Pix[y*w+x]
			top := float64(luts[ty0*tilesX+tx0][v])*(1-ax) + float64(luts[ty0*tilesX+tx1][v])*ax
			bottom := float64(luts[ty1*tilesX+tx0][v])*(1-ax) + float64(luts[ty1*tilesX+tx1][v])*ax
			out.Pix[y*w+x] = uint8(math.Round(top*(1-ay) + bottom*ay))
		}
	}
	return out
}

func tileMapping(g *Gray, x0, y0, x1, y1 int, clipLimit float64) [256]uint8 {
	var hist [256]int
	area := (x1 - x0) * (y1 - y0)
	for y := y0; y < y1; y++ {
		row := g.Pix[y*g.Width:]
		for x := x0; x < x1; x++ {
			hist[row[x]]++
		}
	}

	if clipLimit > 0 {
		limit := max(int(clipLimit*float64(area)/256), 1)
		excess := 0
		for i := range hist {
			if hist[i] > limit {
				excess += hist[i] - limit
				hist[i] = limit
			}
		}
		bonus, residual := excess/256, excess%256
		for i := range hist {
			hist[i] += bonus
			if i < residual {
				hist[i]++
			}
		}
	}

	var lut [256]uint8
	if area == 0 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}

	scale := 255 / float64(area)
	sum := 0
	for i := range hist {
		sum += hist[i]
		lut[i] = uint8(math.Min(255, math.Round(float64(sum)*scale)))
	}
	return lut
}

// bilateral is an edge preserving smoothing filter over a disc of the given
// radius with Gaussian spatial and range weights.
func bilateral(g *Gray, radius int, sigmaColor, sigmaSpace float64) *Gray {
	type tap struct {
		dx, dy int
		w      float64
	}

	var taps []tap
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d2 := float64(dx*dx + dy*dy)
			if d2 > float64(radius*radius) {
				continue
			}
			taps = append(taps, tap{dx: dx, dy: dy, w: math.Exp(-d2 / (2 * sigmaSpace * sigmaSpace))})
		}
	}

	var rangeWeight [256]float64
	for i := range rangeWeight {
		rangeWeight[i] = math.Exp(-float64(i*i) / (2 * sigmaColor * sigmaColor))
	}

	w, h := g.Width, g.Height
	out := NewGray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			center := int(g.Pix[y*w+x])
			var sum, norm float64
			for _, t := range taps {
				v := int(g.Clamped(x+t.dx, y+t.dy))
				diff := v - center
				if diff < 0 {
					diff = -diff
				}
				wt := t.w * rangeWeight[diff]
				sum += wt * float64(v)
				norm += wt
			}
			out.Pix[y*w+x] = uint8(math.Round(sum / norm))
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
