package main

import (
	_ "quickflare/cmd"
	"quickflare/cmd/root"
	"quickflare/internal/logger"
	"os"
)

func main() {
	if err := root.RootCmd.Execute(); err != nil {
		logger.Fatal(err)
	}
	os.Exit(0)
}
