// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package breath detects breaths in a respiratory flow signal, such as the
// flow channel recorded by a CPAP device.
//
// A breath is inferred from a local maximum in the flow (the inhalation) that
// is followed by flow returning to zero or below (the exhalation) before the
// next local maximum.
package breath

import (
	"errors"

	"go.uber.org/zap"
)

var (
	// ErrEmptyFlow is returned by strict detectors when there are no flow
	// samples.
	ErrEmptyFlow = errors.New("empty flow sequence")
	// ErrLengthMismatch is returned when time and flow samples differ in length.
	ErrLengthMismatch = errors.New("time and flow lengths differ")
)

// Option configures a Detector.
type Option func(*Detector)

// WithStrict makes the detector reject an empty flow sequence with
// ErrEmptyFlow instead of returning an empty result.
func WithStrict(strict bool) Option {
	return func(d *Detector) {
		d.strict = strict
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Detector finds breaths in a flow sequence.
type Detector struct {
	strict bool
	logger *zap.Logger
}

// NewDetector returns a Detector configured with the given options.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect returns the ascending indices of the peaks that mark a completed
// breath. A peak counts when at least one sample strictly between it and the
// next peak is zero or negative. The last peak has no following interval and
// is never reported.
func (d *Detector) Detect(flow []float64) ([]int, error) {
	if len(flow) == 0 && d.strict {
		return nil, ErrEmptyFlow
	}

	peaks := FindPeaks(flow)

	breaths := make([]int, 0, len(peaks))
	for i := 0; i+1 < len(peaks); i++ {
		for j := peaks[i] + 1; j < peaks[i+1]; j++ {
			if flow[j] <= 0 {
				breaths = append(breaths, peaks[i])
				break
			}
		}
	}

	d.logger.Debug("detected breaths",
		zap.Int("samples", len(flow)),
		zap.Int("peaks", len(peaks)),
		zap.Int("breaths", len(breaths)))

	return breaths, nil
}

// Detect runs a lenient detector with default options.
func Detect(flow []float64) []int {
	breaths, _ := NewDetector().Detect(flow)
	return breaths
}

// FindPeaks returns the ascending indices of the local maxima in flow.
//
// A sample is a peak when its left neighbour is strictly lower and the first
// differing sample to its right is strictly lower. A flat top of equal samples
// is reported once, at its first index. The first and last samples are never
// peaks, and NaN never compares as higher, lower or equal.
func FindPeaks(flow []float64) []int {
	peaks := []int{}

	i := 1
	for i < len(flow)-1 {
		if !(flow[i-1] < flow[i]) {
			i++
			continue
		}

		// Walk to the end of a plateau.
		j := i + 1
		for j < len(flow)-1 && flow[j] == flow[i] {
			j++
		}

		if flow[j] < flow[i] {
			peaks = append(peaks, i)
		}
		i = j
	}

	return peaks
}
