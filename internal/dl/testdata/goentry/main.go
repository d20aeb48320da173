// Package main is a Go-ABI module used by the dl integration tests.
package main

type counter struct{ n int }

func (c *counter) Next() int {
	c.n++
	return c.n
}

// DynmodEntry returns the module's handle.
func DynmodEntry() any {
	return &counter{}
}

func main() {}
