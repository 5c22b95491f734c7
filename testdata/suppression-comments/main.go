// Package main checks suppression of type assertions that may fail.
package main

// Shape is implemented by Square and Circle.
type Shape interface {
	Area() float64
}

type Square struct {
	side float64
}

func (s *Square) Area() float64 { return s.side * s.side }

type Circle struct {
	radius float64
}

func (c *Circle) Area() float64 { return 3 * c.radius * c.radius }

// side panics for circles.
func side(s Shape) float64 {
	return s.(*Square).side
}

// sideSuppressed panics for circles too, but the whole function is suppressed.
//
//nolint:pointsto // only squares are measured in production
func sideSuppressed(s Shape) float64 {
	return s.(*Square).side
}

// sideLine suppresses the assertion on its own line.
func sideLine(s Shape) float64 {
	sq := s.(*Square) //lint:ignore pointsto validated by the caller
	return sq.side
}

// sideChecked cannot panic.
func sideChecked(s Shape) float64 {
	if sq, ok := s.(*Square); ok {
		return sq.side
	}
	return 0
}

// radius only sees circles.
func radius(s Shape) float64 {
	return s.(*Circle).radius
}

func main() {
	shapes := []Shape{&Square{side: 2}, &Circle{radius: 1}}
	total := 0.0
	for _, s := range shapes {
		total += side(s) + sideSuppressed(s) + sideLine(s) + sideChecked(s)
	}
	total += radius(&Circle{radius: 3})
	_ = total
}
