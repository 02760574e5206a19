package main

import (
	cmd "github.com/sleevescan/sleevescan/cmd/sleevescan"
	"github.com/sleevescan/sleevescan/internal"
)

var log = internal.GetLogger()

func main() {
	log.Info("Starting sleevescan")
	cmd.Execute()
}
