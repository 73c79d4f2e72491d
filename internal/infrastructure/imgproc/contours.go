package imgproc

import (
	"image"
	"math"
)

// RetrievalMode режим отбора контуров
type RetrievalMode int

const (
	// RetrievalExternal только внешние контуры: вложенные в дыры других
	// компонент отбрасываются.
	RetrievalExternal RetrievalMode = iota
	// RetrievalList внешние границы всех связных компонент.
	RetrievalList
)

// Contour замкнутая граница компоненты после упрощения (аналог CHAIN_APPROX_SIMPLE):
// хранятся только точки, где меняется направление обхода.
type Contour []image.Point

// BoundingRect возвращает ограничивающий прямоугольник контура (Max не включительно).
func (c Contour) BoundingRect() image.Rectangle {
	if len(c) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: c[0], Max: c[0].Add(image.Pt(1, 1))}
	for _, p := range c[1:] {
		r = r.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
	}
	return r
}

// направления обхода по часовой стрелке (ось Y вниз)
var moore = [8]image.Point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

const dirWest = 4

func dirOf(p image.Point) int {
	for i, d := range moore {
		if d == p {
			return i
		}
	}
	return dirWest
}

// FindContours ищет контуры ненулевых пикселей одноканальной маски.
// Компоненты 8-связные, фон 4-связный.
func FindContours(mask *PixelBuffer, mode RetrievalMode) []Contour {
	w, h := mask.Width, mask.Height
	fg := func(x, y int) bool {
		if x < 0 || y < 0 || x >= w || y >= h {
			return false
		}
		return mask.Pix[mask.Offset(x, y)] != 0
	}

	var outside []bool
	if mode == RetrievalExternal {
		outside = outerBackground(w, h, fg)
	}

	labels := make([]int32, w*h)
	var contours []Contour
	var label int32
	queue := make([]image.Point, 0, 64)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if labels[y*w+x] != 0 || !fg(x, y) {
				continue
			}
			label++
			start := image.Pt(x, y)
			external := false

			labels[y*w+x] = label
			queue = append(queue[:0], start)
			for len(queue) > 0 {
				p := queue[len(queue)-1]
				queue = queue[:len(queue)-1]
				if outside != nil && !external && touchesOutside(p, w, h, outside) {
					external = true
				}
				for _, d := range moore {
					q := p.Add(d)
					if fg(q.X, q.Y) && labels[q.Y*w+q.X] == 0 {
						labels[q.Y*w+q.X] = label
						queue = append(queue, q)
					}
				}
			}

			if mode == RetrievalExternal && !external {
				continue
			}
			contours = append(contours, simplify(traceBoundary(start, fg, w*h)))
		}
	}
	return contours
}

// outerBackground помечает нулевые пиксели, достижимые от края кадра.
func outerBackground(w, h int, fg func(x, y int) bool) []bool {
	outside := make([]bool, w*h)
	stack := make([]image.Point, 0, 2*(w+h))
	push := func(x, y int) {
		if x < 0 || y < 0 || x >= w || y >= h || outside[y*w+x] || fg(x, y) {
			return
		}
		outside[y*w+x] = true
		stack = append(stack, image.Pt(x, y))
	}
	for x := 0; x < w; x++ {
		push(x, 0)
		push(x, h-1)
	}
	for y := 0; y < h; y++ {
		push(0, y)
		push(w-1, y)
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		push(p.X+1, p.Y)
		push(p.X-1, p.Y)
		push(p.X, p.Y+1)
		push(p.X, p.Y-1)
	}
	return outside
}

func touchesOutside(p image.Point, w, h int, outside []bool) bool {
	if p.X == 0 || p.Y == 0 || p.X == w-1 || p.Y == h-1 {
		return true
	}
	return outside[p.Y*w+p.X-1] || outside[p.Y*w+p.X+1] ||
		outside[(p.Y-1)*w+p.X] || outside[(p.Y+1)*w+p.X]
}

// traceBoundary обходит внешнюю границу компоненты по соседям Мура.
// start должен быть первым пикселем компоненты в порядке развёртки,
// тогда его западный сосед гарантированно фон.
func traceBoundary(start image.Point, fg func(x, y int) bool, limit int) Contour {
	points := Contour{start}
	cur, back := start, dirWest
	first := -1

	for steps := 0; steps < 4*limit+8; steps++ {
		d := -1
		for i := 1; i <= 8; i++ {
			cand := (back + i) % 8
			q := cur.Add(moore[cand])
			if fg(q.X, q.Y) {
				d = cand
				break
			}
		}
		if d < 0 {
			break // одиночный пиксель
		}
		if cur == start {
			if first < 0 {
				first = d
			} else if d == first {
				break
			}
		}
		next := cur.Add(moore[d])
		// последний проверенный фоновый сосед становится точкой возврата
		back = dirOf(cur.Add(moore[(d+7)%8]).Sub(next))
		cur = next
		if cur != start {
			points = append(points, cur)
		}
	}
	return points
}

// simplify оставляет только точки смены направления.
func simplify(c Contour) Contour {
	if len(c) < 3 {
		return c
	}
	out := Contour{c[0]}
	for i := 1; i < len(c)-1; i++ {
		if c[i].Sub(c[i-1]) != c[i+1].Sub(c[i]) {
			out = append(out, c[i])
		}
	}
	out = append(out, c[len(c)-1])
	return out
}

// Area площадь многоугольника контура по формуле шнурования.
func (c Contour) Area() float64 {
	if len(c) < 3 {
		return 0
	}
	var sum int
	for i, p := range c {
		q := c[(i+1)%len(c)]
		sum += p.X*q.Y - q.X*p.Y
	}
	return math.Abs(float64(sum)) / 2
}

// Largest возвращает индекс контура с наибольшей площадью, или -1 для
// пустого списка. При равной площади выигрывает более длинный контур.
func Largest(contours []Contour) int {
	best, bestArea := -1, -1.0
	for i, c := range contours {
		area := c.Area()
		if area > bestArea || (area == bestArea && len(c) > len(contours[best])) {
			best, bestArea = i, area
		}
	}
	return best
}

// ComponentMask возвращает маску компоненты исходной маски, содержащей точку p.
func ComponentMask(mask *PixelBuffer, p image.Point) *PixelBuffer {
	out := NewPixelBuffer(mask.Width, mask.Height, SpaceGray)
	if !p.In(mask.Bounds()) || mask.Pix[mask.Offset(p.X, p.Y)] == 0 {
		return out
	}
	stack := []image.Point{p}
	out.Pix[out.Offset(p.X, p.Y)] = 255
	for len(stack) > 0 {
		q := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range moore {
			n := q.Add(d)
			if !n.In(mask.Bounds()) {
				continue
			}
			i := mask.Offset(n.X, n.Y)
			if mask.Pix[i] != 0 && out.Pix[out.Offset(n.X, n.Y)] == 0 {
				out.Pix[out.Offset(n.X, n.Y)] = 255
				stack = append(stack, n)
			}
		}
	}
	return out
}
