package main

import (
	"os"

	"weatherfav/internal/logger"
)

func main() {
	err := newRootCmd().Execute()
	logger.Close()
	if err != nil {
		os.Exit(1)
	}
}
