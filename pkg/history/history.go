// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package history keeps the per-epoch training log of a classifier, and persists it as a CSV file
// (with "#" comment lines for tags, like library versions) and as a plot of the loss curves.
package history

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
)

// Record holds the metrics of one epoch.
type Record struct {
	Epoch   int
	Loss    float64
	Acc     float64
	ValLoss float64
	ValAcc  float64

	// Time is the wall-clock at the end of the epoch, in seconds. After NormalizeTimes the
	// earliest record has Time 0.
	Time float64
}

// Column names of the CSV log, in order.
var Columns = []string{"epoch", "loss", "acc", "val_loss", "val_acc", "time"}

// History is the ordered log of epochs.
type History struct {
	Records []Record
}

// Append a record.
func (h *History) Append(r Record) {
	h.Records = append(h.Records, r)
}

// Len returns the number of records.
func (h *History) Len() int { return len(h.Records) }

// NormalizeTimes subtracts the minimum time from all records, so the minimum becomes 0.
func (h *History) NormalizeTimes() {
	if len(h.Records) == 0 {
		return
	}
	minTime := math.Inf(1)
	for _, r := range h.Records {
		minTime = min(minTime, r.Time)
	}
	for ii := range h.Records {
		h.Records[ii].Time -= minTime
	}
}

// Best returns the record with the lowest validation loss. It returns false if the history is empty.
func (h *History) Best() (Record, bool) {
	if len(h.Records) == 0 {
		return Record{}, false
	}
	best := h.Records[0]
	for _, r := range h.Records[1:] {
		if r.ValLoss < best.ValLoss {
			best = r
		}
	}
	return best, true
}

// DataFrame converts the history to a gota DataFrame with the Columns.
func (h *History) DataFrame() dataframe.DataFrame {
	epochs := make([]int, len(h.Records))
	columns := make([][]float64, len(Columns)-1)
	for ii := range columns {
		columns[ii] = make([]float64, len(h.Records))
	}
	for ii, r := range h.Records {
		epochs[ii] = r.Epoch
		for col, v := range []float64{r.Loss, r.Acc, r.ValLoss, r.ValAcc, r.Time} {
			columns[col][ii] = v
		}
	}
	allSeries := []series.Series{series.New(epochs, series.Int, Columns[0])}
	for ii, values := range columns {
		allSeries = append(allSeries, series.New(values, series.Float, Columns[ii+1]))
	}
	return dataframe.New(allSeries...)
}

// WriteCSV writes the history to filePath, overwriting it. Each of the comments is written first, in
// its own line prefixed by "# ".
func (h *History) WriteCSV(filePath string, comments []string) (err error) {
	var f *os.File
	f, err = os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", filePath)
	}
	defer func() {
		cErr := f.Close()
		if err == nil && cErr != nil {
			err = errors.Wrapf(cErr, "failed to close %q", filePath)
		}
	}()
	w := bufio.NewWriter(f)
	for _, comment := range comments {
		for _, line := range strings.Split(comment, "\n") {
			if _, err = fmt.Fprintf(w, "# %s\n", line); err != nil {
				return errors.Wrapf(err, "failed to write to %q", filePath)
			}
		}
	}
	if err = h.DataFrame().WriteCSV(w); err != nil {
		return errors.Wrapf(err, "failed to write log to %q", filePath)
	}
	if err = w.Flush(); err != nil {
		return errors.Wrapf(err, "failed to write to %q", filePath)
	}
	return nil
}

// ReadCSV reads a history written by WriteCSV, returning also the comment lines (without the "# " prefix).
func ReadCSV(filePath string) (*History, []string, error) {
	contents, err := os.ReadFile(filePath)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read %q", filePath)
	}
	var comments []string
	for _, line := range strings.Split(string(contents), "\n") {
		if strings.HasPrefix(line, "#") {
			comments = append(comments, strings.TrimPrefix(strings.TrimPrefix(line, "#"), " "))
		}
	}
	df := dataframe.ReadCSV(strings.NewReader(string(contents)), dataframe.WithComments('#'),
		dataframe.WithTypes(map[string]series.Type{
			"epoch": series.Int, "loss": series.Float, "acc": series.Float,
			"val_loss": series.Float, "val_acc": series.Float, "time": series.Float,
		}))
	if df.Err != nil {
		return nil, nil, errors.Wrapf(df.Err, "failed to parse %q", filePath)
	}
	for _, name := range Columns {
		if !hasColumn(df, name) {
			return nil, nil, errors.Errorf("%q has no column %q", filePath, name)
		}
	}
	epochs, err := df.Col("epoch").Int()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "%q: invalid epoch column", filePath)
	}
	loss, acc := df.Col("loss").Float(), df.Col("acc").Float()
	valLoss, valAcc := df.Col("val_loss").Float(), df.Col("val_acc").Float()
	times := df.Col("time").Float()
	h := &History{Records: make([]Record, df.Nrow())}
	for ii := range h.Records {
		h.Records[ii] = Record{
			Epoch: epochs[ii], Loss: loss[ii], Acc: acc[ii],
			ValLoss: valLoss[ii], ValAcc: valAcc[ii], Time: times[ii],
		}
	}
	return h, comments, nil
}

func hasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}
