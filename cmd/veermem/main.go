package main

import "github.com/CircuitSutra/VeeR-ISS/cmd/veermem/cmd"

func main() {
	cmd.Execute()
}
