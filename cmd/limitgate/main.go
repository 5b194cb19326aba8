// Package main is the entry point for limitgate.
package main

func main() {
	Execute()
}
