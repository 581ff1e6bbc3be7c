// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package breath

import (
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// ApneaThreshold is the gap in seconds between consecutive breaths above
// which an apnea event is counted.
const ApneaThreshold = 10.0

// Metrics summarises the breaths found in a single recording.
type Metrics struct {
	RunID                string    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Duration             float64   `json:"duration" yaml:"duration"`                         // Seconds between the first and last sample
	Breaths              int       `json:"breaths" yaml:"breaths"`                           // Number of completed breaths
	BreathRateBPM        float64   `json:"breath_rate_bpm" yaml:"breath_rate_bpm"`           // Breaths per minute
	BreathIndices        []int     `json:"breath_indices" yaml:"breath_indices"`             // Sample index of each breath peak
	BreathTimes          []float64 `json:"breath_times" yaml:"breath_times"`                 // Time of each breath peak
	ApneaCount           int       `json:"apnea_count" yaml:"apnea_count"`                   // Gaps longer than ApneaThreshold
	Leakage              float64   `json:"leakage" yaml:"leakage"`                           // Litres
	MeanBreathInterval   float64   `json:"mean_breath_interval" yaml:"mean_breath_interval"` // Seconds
	BreathIntervalStdDev float64   `json:"breath_interval_stddev" yaml:"breath_interval_stddev"`
}

// Analyze detects the breaths in a recording and computes its summary
// metrics. time holds the timestamp in seconds of each flow sample. An empty
// recording yields empty metrics, or ErrEmptyFlow if the detector is strict.
func Analyze(time, flow []float64, opts ...Option) (*Metrics, error) {
	if len(time) != len(flow) {
		return nil, ErrLengthMismatch
	}

	d := NewDetector(opts...)

	indices, err := d.Detect(flow)
	if err != nil {
		return nil, err
	}

	m := &Metrics{
		Breaths:       len(indices),
		BreathIndices: indices,
		BreathTimes:   make([]float64, len(indices)),
	}
	if len(time) == 0 {
		return m, nil
	}
	m.Duration = time[len(time)-1] - time[0]

	for i, idx := range indices {
		m.BreathTimes[i] = time[idx]
	}

	if m.Duration > 0 {
		m.BreathRateBPM = float64(m.Breaths) / m.Duration * 60
	}

	m.ApneaCount = CountApneas(m.BreathTimes)

	m.Leakage = Leakage(time, flow)
	if m.Leakage < 0 {
		d.logger.Warn("leakage is negative", zap.Float64("leakage", m.Leakage))
	}

	intervals := breathIntervals(m.BreathTimes)
	if len(intervals) > 0 {
		m.MeanBreathInterval = stat.Mean(intervals, nil)
	}
	if len(intervals) > 1 {
		m.BreathIntervalStdDev = stat.StdDev(intervals, nil)
	}

	return m, nil
}

// CountApneas counts the gaps between consecutive breath times that exceed
// ApneaThreshold.
func CountApneas(breathTimes []float64) int {
	var count int
	for _, gap := range breathIntervals(breathTimes) {
		if gap > ApneaThreshold {
			count++
		}
	}
	return count
}

// Leakage returns the net volume lost through the mask seal, computed as the
// sum of flow change times time step over the recording.
func Leakage(time, flow []float64) float64 {
	n := min(len(time), len(flow))

	var leakage float64
	for i := 0; i+1 < n; i++ {
		leakage += (flow[i+1] - flow[i]) * (time[i+1] - time[i])
	}
	return leakage
}

func breathIntervals(breathTimes []float64) []float64 {
	if len(breathTimes) < 2 {
		return nil
	}

	intervals := make([]float64, len(breathTimes)-1)
	for i := range intervals {
		intervals[i] = breathTimes[i+1] - breathTimes[i]
	}
	return intervals
}
