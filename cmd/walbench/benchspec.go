package main

import "fmt"

type benchSpec struct {
	name string
	// start from an empty directory
	freshDir bool
	// reuse the newest log instead of creating one
	reuse bool
	write bool
}

func benchSpecFor(name string) (benchSpec, error) {
	switch name {
	case "append":
		return benchSpec{name: name, freshDir: true, write: true}, nil
	case "reuse":
		return benchSpec{name: name, reuse: true, write: true}, nil
	case "recover":
		return benchSpec{name: name}, nil
	default:
		return benchSpec{}, fmt.Errorf("unknown benchmark %q", name)
	}
}
