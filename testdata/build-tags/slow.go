//go:build !fast

package main

type slowEngine struct{}

func (*slowEngine) Run() {}

func newEngine() Engine {
	return &slowEngine{}
}
