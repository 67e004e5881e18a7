package main

import (
	"os"

	"github.com/firefly-engineering/kraftcheck/cmd"
	"github.com/firefly-engineering/kraftcheck/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(errors.GetExitCode(err))
	}
}
