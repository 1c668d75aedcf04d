package main

import (
	"os"

	"hark/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
