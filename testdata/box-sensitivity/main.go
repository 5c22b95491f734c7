// Package main checks that methods are analyzed once per receiver allocation
// site, so values stored in different boxes are kept apart.
package main

type Fruit interface {
	Name() string
}

type Apple struct{}

func (*Apple) Name() string { return "apple" }

type Orange struct{}

func (*Orange) Name() string { return "orange" }

// Box holds a single value.
type Box struct {
	v Fruit
}

func (b *Box) Set(v Fruit) { b.v = v }

func (b *Box) Get() Fruit { return b.v }

func main() {
	apples := &Box{}
	apples.Set(&Apple{})
	oranges := &Box{}
	oranges.Set(&Orange{})

	_ = apples.Get().(*Apple)
	_ = oranges.Get().(*Orange)
}
