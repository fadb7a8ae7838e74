package main

import (
	"github.com/oshokin/iaq-supervisor/cmd/iaq-simulator/cmd"
)

func main() {
	cmd.Execute()
}
