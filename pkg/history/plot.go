// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package history

import (
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// SavePlot draws the loss and validation loss per epoch and saves it to filePath. The image format is
// taken from the file extension (e.g. ".png" or ".svg").
func (h *History) SavePlot(filePath, title string) error {
	if len(h.Records) == 0 {
		return errors.Errorf("cannot plot an empty history to %q", filePath)
	}
	loss := make(plotter.XYs, len(h.Records))
	valLoss := make(plotter.XYs, len(h.Records))
	for ii, r := range h.Records {
		loss[ii].X, loss[ii].Y = float64(r.Epoch), r.Loss
		valLoss[ii].X, valLoss[ii].Y = float64(r.Epoch), r.ValLoss
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "loss"
	p.Add(plotter.NewGrid())
	if err := plotutil.AddLinePoints(p, "loss", loss, "val_loss", valLoss); err != nil {
		return errors.Wrapf(err, "failed to plot history")
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, filePath); err != nil {
		return errors.Wrapf(err, "failed to save plot to %q", filePath)
	}
	return nil
}
