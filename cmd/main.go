package main

import (
	"os"

	"github.com/soundprediction/minerva/cmd/minerva"
)

func main() {
	if err := minerva.Execute(); err != nil {
		os.Exit(1)
	}
}
