// Package main checks that functions called from assembly or through
// linkname are analyzed even though no Go code calls them.
package main

import _ "unsafe"

type Event struct {
	id int
}

// dispatch is implemented in hooks.s and calls onEvent.
func dispatch(e *Event)

// onEvent is only called from assembly.
func onEvent(e *Event) {
	handled(e)
}

func handled(e *Event) {}

// tick is called by the scheduler of another package.
//
//go:linkname tick
func tick() {
	handled(&Event{id: 2})
}

func unreferenced() {}

func main() {
	dispatch(&Event{id: 1})
}
