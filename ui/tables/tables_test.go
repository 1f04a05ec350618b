// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tables

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	table := New([]string{"Name", "Count"}, lipgloss.Left, lipgloss.Right)
	table.Row("a", "1")
	table.HighlightedRow("b", "2")
	require.Equal(t, 2, table.NumRows())
	rendered := table.String()
	for _, want := range []string{"Name", "Count", "a", "b", "1", "2"} {
		assert.Contains(t, rendered, want)
	}
}

func TestFromScores(t *testing.T) {
	rendered := FromScores(map[string]float64{
		"mean-pearson_r2_score": 0.5,
		"a-score":               0.25,
	}).String()
	assert.Contains(t, rendered, "0.5000")
	assert.Contains(t, rendered, "0.2500")
	// Sorted by name.
	assert.Less(t, strings.Index(rendered, "a-score"), strings.Index(rendered, "mean-pearson_r2_score"))
}
