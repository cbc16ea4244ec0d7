package main

import (
	"os"

	"kairon/cmd/kairon/cmd"
	"kairon/internal/config"
)

func main() {
	config.LoadEnv()
	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr, nil))
}
