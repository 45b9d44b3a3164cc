package vision

import (
	"image"
	"math"
	"sort"
)

// Moore neighbourhood in clockwise order starting west (y grows downward).
var mooreOffsets = [8]image.Point{
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
}

func mooreIndex(d image.Point) int {
	for i, o := range mooreOffsets {
		if o == d {
			return i
		}
	}
	return 0
}

// externalContours labels 8-connected foreground components and traces the
// outer boundary of each one.
func externalContours(bin *Gray) []Contour {
	w, h := bin.Width, bin.Height
	labels := make([]int32, w*h)
	var contours []Contour
	var next int32

	queue := make([]int, 0, 256)
	for i := 0; i < w*h; i++ {
		if bin.Pix[i] == 0 || labels[i] != 0 {
			continue
		}

		next++
		labels[i] = next
		queue = append(queue[:0], i)
		for len(queue) > 0 {
			j := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, y := j%w, j/w
			for _, o := range mooreOffsets {
				nx, ny := x+o.X, y+o.Y
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				k := ny*w + nx
				if bin.Pix[k] != 0 && labels[k] == 0 {
					labels[k] = next
					queue = append(queue, k)
				}
			}
		}

		// raster order guarantees i is the top-most, left-most pixel
		contours = append(contours, traceBoundary(bin, image.Pt(i%w, i/w)))
	}

	return contours
}

func traceBoundary(bin *Gray, start image.Point) Contour {
	w, h := bin.Width, bin.Height
	fg := func(p image.Point) bool {
		return p.X >= 0 && p.Y >= 0 && p.X < w && p.Y < h && bin.Pix[p.Y*w+p.X] != 0
	}

	contour := Contour{start}
	cur := start
	backtrack := 0
	limit := 4*w*h + 8

	for n := 0; n < limit; n++ {
		found := false
		var nextPt image.Point
		var from image.Point
		for k := 1; k <= 8; k++ {
			d := (backtrack + k) % 8
			cand := cur.Add(mooreOffsets[d])
			if fg(cand) {
				nextPt = cand
				from = cur.Add(mooreOffsets[(d+7)%8])
				found = true
				break
			}
		}
		if !found {
			return contour
		}

		if cur == start && len(contour) > 1 && nextPt == contour[1] {
			break
		}

		backtrack = mooreIndex(from.Sub(nextPt))
		cur = nextPt
		contour = append(contour, cur)
	}

	// the walk ends back at start; drop the duplicate
	if len(contour) > 1 && contour[len(contour)-1] == start {
		contour = contour[:len(contour)-1]
	}
	return contour
}

// Area is the polygon area enclosed by the contour (shoelace formula).
func (c Contour) Area() float64 {
	return polygonArea(c)
}

// PixelArea counts the lattice points on or inside the contour (Pick's
// theorem), i.e. the pixels the outline covers. It is in the same unit as
// BoundingRect, unlike Area, which runs through pixel centres.
func (c Contour) PixelArea() float64 {
	switch len(c) {
	case 0:
		return 0
	case 1:
		return 1
	}
	var boundary int
	for i := range c {
		d := c[(i+1)%len(c)].Sub(c[i])
		boundary += gcd(abs(d.X), abs(d.Y))
	}
	return polygonArea(c) + float64(boundary)/2 + 1
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (c Contour) BoundingRect() image.Rectangle {
	if len(c) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: c[0], Max: c[0]}
	for _, p := range c[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	r.Max = r.Max.Add(image.Pt(1, 1))
	return r
}

func (c Contour) HullArea() float64 {
	return polygonArea(convexHull(c))
}

func polygonArea(pts []image.Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	var sum int
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(float64(sum)) / 2
}

// convexHull uses Andrew's monotone chain and returns the hull counter
// clockwise without repeating the first point.
func convexHull(c Contour) []image.Point {
	pts := make([]image.Point, len(c))
	copy(pts, c)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})
	if len(pts) < 3 {
		return pts
	}

	cross := func(o, a, b image.Point) int {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	hull := make([]image.Point, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}
