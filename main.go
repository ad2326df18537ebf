package main

import (
	"os"

	"crateship/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
