// Package main checks states flowing through maps and channels.
package main

type K struct{}

type V struct{}

func useK(k *K) {}

func useV(v *V) {}

// received gets values read from a channel.
func received(v *V) {}

func main() {
	m := map[*K]*V{}
	m[&K{}] = &V{}
	m[&K{}] = &V{}
	for k, v := range m {
		useK(k)
		useV(v)
	}
	useV(m[&K{}])

	ch := make(chan *V, 1)
	ch <- &V{}
	received(<-ch)
}
