// Package main checks calls through function values.
package main

type T struct{}

type U struct{}

// apply calls whatever function it is given.
func apply(f func() any) any {
	return f()
}

func main() {
	t := &T{}
	apply(func() any { return t })
	apply(func() any { return &U{} })
}
