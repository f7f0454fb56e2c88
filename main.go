// Package main provides the entry point for the astrocal command.
package main

import (
	"errors"
	"fmt"
	"os"

	"astrocal/internal/calerr"
)

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

// handleCmdError prints a hint for the error classes a user can act on.
func handleCmdError(err error) {
	switch {
	case errors.Is(err, calerr.ErrConfig):
		fmt.Fprintln(os.Stderr, "\nCheck the configuration file, ASTROCAL_* variables and flags.")
	case errors.Is(err, calerr.ErrInsufficientData):
		fmt.Fprintln(os.Stderr, "\nToo few valid detections: lower --degree, add frames or lower --flux-threshold.")
	case errors.Is(err, calerr.ErrDegenerate):
		fmt.Fprintln(os.Stderr, "\nThe mask shifts do not constrain the field: use more distinct, non-collinear shifts or a lower degree.")
	case errors.Is(err, calerr.ErrDetection):
		fmt.Fprintln(os.Stderr, "\nToo many failed detections: check --radius, --flux-threshold and the grid geometry (try --overlay).")
	}
}
