// Package main checks that build tags select the analyzed files.
package main

// Engine is implemented once per build.
type Engine interface {
	Run()
}

func run(e Engine) {
	e.Run()
}

func main() {
	run(newEngine())
}
