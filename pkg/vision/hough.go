package vision

import (
	"math"
	"sort"
)

const maxHoughPeaks = 64

type houghPeak struct {
	theta int
	rho   int
	votes int32
}

// houghSegments votes every edge pixel into a (theta, rho) accumulator,
// keeps local maxima above the threshold and walks each peak line to split
// it into segments separated by gaps longer than MaxLineGap.
func houghSegments(edges *Gray, p LineParams) []Segment {
	w, h := edges.Width, edges.Height
	rhoRes := p.Rho
	if rhoRes <= 0 {
		rhoRes = 1
	}
	thetaRes := p.Theta
	if thetaRes <= 0 {
		thetaRes = math.Pi / 180
	}

	numTheta := int(math.Round(math.Pi / thetaRes))
	maxRho := int(math.Ceil(math.Hypot(float64(w), float64(h)) / rhoRes))
	numRho := 2*maxRho + 1

	cosT := make([]float64, numTheta)
	sinT := make([]float64, numTheta)
	for t := 0; t < numTheta; t++ {
		angle := float64(t) * thetaRes
		cosT[t] = math.Cos(angle) / rhoRes
		sinT[t] = math.Sin(angle) / rhoRes
	}

	acc := make([]int32, numTheta*numRho)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if edges.Pix[y*w+x] == 0 {
				continue
			}
			fx, fy := float64(x), float64(y)
			for t := 0; t < numTheta; t++ {
				r := int(math.Round(fx*cosT[t]+fy*sinT[t])) + maxRho
				acc[t*numRho+r]++
			}
		}
	}

	peaks := make([]houghPeak, 0, maxHoughPeaks)
	for t := 0; t < numTheta; t++ {
		for r := 0; r < numRho; r++ {
			v := acc[t*numRho+r]
			if int(v) < p.Threshold || !isLocalMax(acc, numTheta, numRho, t, r) {
				continue
			}
			peaks = append(peaks, houghPeak{theta: t, rho: r, votes: v})
		}
	}

	sort.Slice(peaks, func(i, j int) bool {
		return peaks[i].votes > peaks[j].votes
	})
	if len(peaks) > maxHoughPeaks {
		peaks = peaks[:maxHoughPeaks]
	}

	var segments []Segment
	for _, pk := range peaks {
		angle := float64(pk.theta) * thetaRes
		rho := float64(pk.rho-maxRho) * rhoRes
		segments = append(segments, walkLine(edges, angle, rho, p.MinLineLength, p.MaxLineGap)...)
	}
	return segments
}

func isLocalMax(acc []int32, numTheta, numRho, t, r int) bool {
	v := acc[t*numRho+r]
	for dt := -1; dt <= 1; dt++ {
		for dr := -1; dr <= 1; dr++ {
			if dt == 0 && dr == 0 {
				continue
			}
			nt, nr := t+dt, r+dr
			if nt < 0 || nr < 0 || nt >= numTheta || nr >= numRho {
				continue
			}
			n := acc[nt*numRho+nr]
			// ties resolve to the earliest cell so a plateau yields one peak
			if n > v || (n == v && (dt < 0 || (dt == 0 && dr < 0))) {
				return false
			}
		}
	}
	return true
}

// walkLine steps one pixel at a time along the dominant axis of the line
// x*cos(angle) + y*sin(angle) = rho and collects runs of edge pixels.
func walkLine(edges *Gray, angle, rho float64, minLength, maxGap int) []Segment {
	w, h := edges.Width, edges.Height
	c, s := math.Cos(angle), math.Sin(angle)
	steep := math.Abs(s) < math.Abs(c)

	hit := func(x, y int) bool {
		for d := -1; d <= 1; d++ {
			nx, ny := x, y
			if steep {
				nx += d
			} else {
				ny += d
			}
			if nx >= 0 && ny >= 0 && nx < w && ny < h && edges.Pix[ny*w+nx] != 0 {
				return true
			}
		}
		return false
	}

	var (
		segments     []Segment
		active       bool
		start, last  [2]int
		gap, limitAt int
	)

	flush := func() {
		if !active {
			return
		}
		seg := Segment{X1: start[0], Y1: start[1], X2: last[0], Y2: last[1]}
		if seg.Length() >= float64(minLength) {
			segments = append(segments, seg)
		}
		active = false
	}

	if steep {
		limitAt = h
	} else {
		limitAt = w
	}

	for i := 0; i < limitAt; i++ {
		var x, y int
		if steep {
			y = i
			x = int(math.Round((rho - float64(y)*s) / c))
		} else {
			x = i
			y = int(math.Round((rho - float64(x)*c) / s))
		}
		if x < 0 || y < 0 || x >= w || y >= h {
			if active {
				gap++
				if gap > maxGap {
					flush()
				}
			}
			continue
		}

		if hit(x, y) {
			if !active {
				active = true
				start = [2]int{x, y}
			}
			last = [2]int{x, y}
			gap = 0
			continue
		}

		if active {
			gap++
			if gap > maxGap {
				flush()
			}
		}
	}
	flush()

	return segments
}
