// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// mlp_sweep trains a feed-forward binary classifier for every point of a fixed hyperparameter grid
// over the ".npz" dataset given as argument, with early stopping on the validation loss.
//
// For each point it writes the training log and curves to "result/" and the model description and
// weights to "model/", both created under the current directory.
//
// Usage:
//
//	mlp_sweep <datafile>
//
// It takes no flags.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/molprop/pkg/sweep"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	_ "github.com/gomlx/gomlx/backends/default"
)

// ExitError is returned by run when the program should exit with a specific code and message.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return e.Message
}

func main() {
	if err := run(os.Stdout, os.Args[0], os.Args[1:], true); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			_, _ = fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		klog.Errorf("%+v", err)
		os.Exit(1)
	}
}

// run sweeps the default grid over the datafile given in args[0], writing artifacts under the current
// directory. Extra arguments are ignored.
func run(out io.Writer, prog string, args []string, progressBar bool) error {
	if len(args) < 1 {
		return &ExitError{Code: 1, Message: fmt.Sprintf("Usage: %s [datafile]", prog)}
	}
	dataFile := args[0]
	if _, err := os.Stat(dataFile); err != nil {
		return errors.Wrapf(err, "cannot read datafile %q", dataFile)
	}

	var backend backends.Backend
	err := exceptions.TryCatch[error](func() { backend = backends.New() })
	if err != nil {
		return errors.WithMessage(err, "failed to create backend")
	}
	defer backend.Finalize()

	s := &sweep.Sweep{
		Backend:     backend,
		Grid:        sweep.DefaultGrid(),
		DataFile:    dataFile,
		RootDir:     ".",
		Out:         out,
		ProgressBar: progressBar,
	}
	results, err := s.Run()
	if len(results) > 0 {
		_, _ = fmt.Fprintln(out, sweep.Summary(results))
	}
	return err
}
