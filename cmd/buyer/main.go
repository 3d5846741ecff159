package main

import (
	"os"

	"github.com/blues/ideamarket/internal/logger"
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}
