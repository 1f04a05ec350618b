// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tables renders the console summaries (scores, model layers, sweep results) as lipgloss tables.
package tables

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
	highlightRowStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "2", Dark: "10"}).
				Bold(true).
				PaddingLeft(1).PaddingRight(1)

	// TitleStyle is used for the line printed above a table.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "0", Dark: "15"}).
			Background(lipgloss.AdaptiveColor{Light: "252", Dark: "238"}).
			Padding(0, 1)
)

// Table wraps a lipgloss table and keeps track of the rows to highlight.
type Table struct {
	table       *lgtable.Table
	count       int
	highlighted map[int]bool
}

// New creates a table with the given header (it may be empty) and per-column alignments.
// If there are fewer alignments than columns, the last one is repeated.
func New(header []string, alignments ...lipgloss.Position) *Table {
	t := &Table{highlighted: make(map[int]bool)}
	t.table = lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row < 0 {
				return headerRowStyle
			}
			switch {
			case t.highlighted[row]:
				s = highlightRowStyle
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			alignment := lipgloss.Left
			if col < len(alignments) {
				alignment = alignments[col]
			} else if len(alignments) > 0 {
				alignment = alignments[len(alignments)-1]
			}
			return s.Align(alignment)
		})
	if len(header) > 0 {
		t.table.Headers(header...)
	}
	return t
}

// Row appends a row.
func (t *Table) Row(cells ...string) *Table {
	t.table.Row(cells...)
	t.count++
	return t
}

// HighlightedRow appends a row rendered in the highlight style.
func (t *Table) HighlightedRow(cells ...string) *Table {
	t.highlighted[t.count] = true
	return t.Row(cells...)
}

// NumRows returns the number of rows added so far, not counting the header.
func (t *Table) NumRows() int { return t.count }

// String renders the table.
func (t *Table) String() string {
	return t.table.String()
}

// FromScores renders a map of named scores sorted by name, with values formatted with "%.4f".
func FromScores(scores map[string]float64) *Table {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)
	t := New([]string{"Metric", "Value"}, lipgloss.Left, lipgloss.Right)
	for _, name := range names {
		t.Row(name, fmt.Sprintf("%.4f", scores[name]))
	}
	return t
}
