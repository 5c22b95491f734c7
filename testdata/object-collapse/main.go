// Package main checks that object sets above the configured size collapse
// into the summary object of their type.
package main

type Item struct {
	id int
}

func use(it *Item) int { return it.id }

func main() {
	use(&Item{id: 1})
	use(&Item{id: 2})
	use(&Item{id: 3})
}
