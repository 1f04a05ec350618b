// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package sweep trains one classifier per point of a hyperparameter grid, and saves the history,
// architecture and weights of each run.
//
// Every point reloads the dataset and permutes it with a generator seeded from Grid.Seed, so each
// point sees the same permutation and its results don't depend on the order of the sweep.
// Any error aborts the sweep.
package sweep

import (
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/molprop/internal/versions"
	"github.com/gomlx/molprop/pkg/artifacts"
	"github.com/gomlx/molprop/pkg/history"
	"github.com/gomlx/molprop/pkg/mlp"
	"github.com/gomlx/molprop/pkg/tabular"
	"github.com/gomlx/molprop/ui/tables"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Sweep configures a grid sweep over one dataset file.
type Sweep struct {
	Backend  backends.Backend
	Grid     Grid
	DataFile string

	// RootDir where the "model" and "result" directories are created.
	RootDir string

	// Out receives the console output. Progress bars are written to it too, if ProgressBar is set.
	Out         io.Writer
	ProgressBar bool
}

// Result of one point of the sweep.
type Result struct {
	Point
	Stem    string
	Paths   artifacts.Paths
	Epochs  int
	Best    history.Record
	Elapsed time.Duration
}

// Run trains every point of the grid, in order, and returns their results.
func (s *Sweep) Run() ([]Result, error) {
	if err := s.Grid.Validate(); err != nil {
		return nil, err
	}
	if err := artifacts.EnsureDirs(s.RootDir); err != nil {
		return nil, err
	}
	runID := uuid.New().String()
	tags := versions.Collect(s.Backend)
	_, _ = fmt.Fprint(s.Out, versions.Format(tags))
	comments := make([]string, 0, len(tags)+1)
	for _, tag := range tags {
		comments = append(comments, tag.String())
	}
	comments = append(comments, "run: "+runID)

	points := s.Grid.Points()
	klog.V(1).Infof("Sweep %s: %d points", runID, len(points))
	results := make([]Result, 0, len(points))
	for ii, point := range points {
		klog.V(1).Infof("Point %d/%d: %+v", ii+1, len(points), point)
		result, err := s.RunPoint(point, comments)
		if err != nil {
			return results, errors.WithMessagef(err, "sweep point %d/%d (%s)", ii+1, len(points), result.Stem)
		}
		results = append(results, result)
	}
	return results, nil
}

// runFor returns the artifacts description of the point.
func (s *Sweep) runFor(p Point) artifacts.Run {
	return artifacts.Run{
		DataFile:   s.DataFile,
		Widths:     p.Widths,
		BatchSize:  p.BatchSize,
		Optimizer:  s.Grid.Optimizer,
		Activation: p.Activation,
		MaxEpochs:  s.Grid.MaxEpochs,
	}
}

// RunPoint loads the data, trains the classifier of the point and saves its artifacts.
// The comments are written at the top of the history log.
func (s *Sweep) RunPoint(p Point, comments []string) (result Result, err error) {
	run := s.runFor(p)
	result = Result{Point: p, Stem: run.Stem(), Paths: artifacts.PathsFor(s.RootDir, run)}
	start := time.Now()

	_, _ = fmt.Fprintln(s.Out, "Data loading ...")
	table, err := tabular.Load(s.DataFile)
	if err != nil {
		return
	}
	table = table.Permute(rand.New(rand.NewSource(s.Grid.Seed)))
	examples, err := table.Split()
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(s.Out, "Data shape: (%d, %d)\n", table.NumRows, table.NumCols)

	classifier, err := mlp.New(s.Backend, s.Grid.Config(p, examples.NumFeatures))
	if err != nil {
		return
	}
	_, _ = fmt.Fprintln(s.Out, ModelSummary(classifier))
	if s.ProgressBar {
		classifier.WithProgressBar(s.Out)
	}
	hist, err := classifier.Fit(examples)
	if err != nil {
		return
	}
	result.Epochs = hist.Len()
	result.Best, _ = hist.Best()

	if err = hist.WriteCSV(result.Paths.Log, comments); err != nil {
		return
	}
	if err = hist.SavePlot(result.Paths.Plot, result.Stem); err != nil {
		return
	}
	if err = artifacts.SaveArchitecture(result.Paths.Architecture, classifier.Architecture()); err != nil {
		return
	}
	weights, err := classifier.Weights()
	if err != nil {
		return
	}
	if err = artifacts.SaveWeights(result.Paths.Weights, weights); err != nil {
		return
	}
	result.Elapsed = time.Since(start)
	_, _ = fmt.Fprintf(s.Out, "ran for %.1fs\n", result.Elapsed.Seconds())
	_, _ = fmt.Fprintf(s.Out, "Log file saved as %s\n", result.Paths.Log)
	_, _ = fmt.Fprintf(s.Out, "Model saved as %s and %s\n", result.Paths.Architecture, result.Paths.Weights)
	return
}

// ModelSummary renders the classifier layers as a table followed by the total number of parameters.
func ModelSummary(c *mlp.Classifier) string {
	table := tables.New([]string{"Layer", "Output Shape", "Activation", "Param #"},
		lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Right)
	for _, layer := range c.Layers() {
		table.Row(layer.Name, fmt.Sprintf("(None, %d)", layer.Units), layer.Activation,
			humanize.Comma(int64(layer.NumParameters())))
	}
	return fmt.Sprintf("%s\n%s\nTotal params: %s", tables.TitleStyle.Render("Model summary"), table,
		humanize.Comma(int64(c.NumParameters())))
}

// Summary renders the results of a sweep as a table, highlighting the run with the lowest validation loss.
func Summary(results []Result) string {
	bestIdx := -1
	for ii, r := range results {
		if bestIdx < 0 || r.Best.ValLoss < results[bestIdx].Best.ValLoss {
			bestIdx = ii
		}
	}
	table := tables.New([]string{"Run", "Epochs", "Best epoch", "val_loss", "val_acc", "Elapsed"},
		lipgloss.Left, lipgloss.Right)
	for ii, r := range results {
		row := []string{r.Stem, fmt.Sprint(r.Epochs), fmt.Sprint(r.Best.Epoch),
			fmt.Sprintf("%.4f", r.Best.ValLoss), fmt.Sprintf("%.4f", r.Best.ValAcc),
			r.Elapsed.Round(100 * time.Millisecond).String()}
		if ii == bestIdx {
			table.HighlightedRow(row...)
		} else {
			table.Row(row...)
		}
	}
	return fmt.Sprintf("%s\n%s", tables.TitleStyle.Render("Sweep summary"), table)
}
