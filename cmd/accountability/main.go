package main

import (
	"context"
	"os"

	"github.com/eigerco/accountability/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
