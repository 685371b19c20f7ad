package main

import (
	"os"

	"github.com/dalemusser/mongocrud/internal/cli"
)

func main() {
	os.Exit(cli.Run("mongocrud", os.Args[1:]))
}
