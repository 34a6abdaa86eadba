package main

import (
	"os"

	"github.com/graphweave/graphweave/cmd/graphweave"
)

func main() {
	if err := graphweave.Execute(); err != nil {
		os.Exit(1)
	}
}
