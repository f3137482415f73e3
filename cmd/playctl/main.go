package main

import "github.com/GriffinCanCode/playground/internal/cli"

func main() {
	cli.Execute()
}
