// Package main is the entry point for the modload CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/opmodel/modload/internal/cmd"
	oerrors "github.com/opmodel/modload/internal/errors"
)

func main() {
	rootCmd := cmd.NewRootCmd()

	if err := rootCmd.Execute(); err != nil {
		var exitErr *oerrors.ExitError
		if errors.As(err, &exitErr) {
			// Commands that report per-module failures print them themselves.
			if !exitErr.Printed {
				fmt.Fprintln(os.Stderr, err)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, oerrors.FromLoadError(err))
		os.Exit(oerrors.ExitCodeFromError(err))
	}
}
