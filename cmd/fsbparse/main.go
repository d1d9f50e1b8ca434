// Copyright (C) 2023 by Posit Software, PBC
package main

import (
	"log"
	"os"

	"github.com/rstudio/flat-stream-binding/cmd/fsbparse/cmd"
)

func main() {
	log.SetOutput(os.Stdout)

	cmd.ParseCmd.SetOut(os.Stdout)
	cmd.ParseCmd.SetErr(os.Stderr)
	err := cmd.ParseCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
