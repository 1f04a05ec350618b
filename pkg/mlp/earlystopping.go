// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mlp

import "math"

// EarlyStopping monitors a loss (lower is better) at the end of each epoch.
//
// Training stops once the number of consecutive epochs without improvement exceeds Patience:
// with Patience 10 it stops on the 11th epoch in a row that doesn't improve on the best loss.
type EarlyStopping struct {
	Patience int

	best float64
	wait int
}

// NewEarlyStopping creates an EarlyStopping with the given patience.
func NewEarlyStopping(patience int) *EarlyStopping {
	return &EarlyStopping{Patience: patience, best: math.Inf(1)}
}

// Update records the loss of one epoch and returns whether training should stop.
func (e *EarlyStopping) Update(loss float64) (stop bool) {
	if loss < e.best {
		e.best = loss
		e.wait = 0
		return false
	}
	if e.wait >= e.Patience {
		return true
	}
	e.wait++
	return false
}

// Best loss seen so far.
func (e *EarlyStopping) Best() float64 { return e.best }
