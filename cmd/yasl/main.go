// Package main is the entry point for the yasl command.
package main

func main() {
	Execute()
}
