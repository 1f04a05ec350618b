// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/gomlx/molprop/pkg/artifacts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertNoArtifactDirs checks nothing was created in the current directory.
func assertNoArtifactDirs(t *testing.T) {
	for _, dir := range []string{artifacts.ModelDir, artifacts.ResultDir} {
		_, err := os.Stat(dir)
		assert.Truef(t, os.IsNotExist(err), "directory %q should not have been created", dir)
	}
}

func TestUsage(t *testing.T) {
	t.Chdir(t.TempDir())
	var out bytes.Buffer
	err := run(&out, "mlp_sweep", nil, false)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
	assert.Equal(t, "Usage: mlp_sweep [datafile]", exitErr.Message)
	assert.Empty(t, out.String())
	assertNoArtifactDirs(t)

	assertNoArtifactDirs(t)
}

func TestExtraArgumentsIgnored(t *testing.T) {
	t.Chdir(t.TempDir())
	var out bytes.Buffer
	// Only the first argument is used: the error is about it, not a usage error.
	err := run(&out, "mlp_sweep", []string{"missing.npz", "other.npz"}, false)
	require.ErrorContains(t, err, "missing.npz")
	var exitErr *ExitError
	assert.False(t, errors.As(err, &exitErr))
	assertNoArtifactDirs(t)
}

func TestMissingDataFile(t *testing.T) {
	t.Chdir(t.TempDir())
	var out bytes.Buffer
	err := run(&out, "mlp_sweep", []string{"missing.npz"}, false)
	require.Error(t, err)
	var exitErr *ExitError
	assert.False(t, errors.As(err, &exitErr), "a missing datafile is not a usage error")
	assertNoArtifactDirs(t)
}
