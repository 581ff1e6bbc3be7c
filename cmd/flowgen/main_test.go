// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenPSG/breath"
	"github.com/OpenPSG/breath/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesize(t *testing.T) {
	flow := synthesize(params{
		Duration:  2 * time.Minute,
		Rate:      15,
		Amplitude: 0.5,
	})
	require.Len(t, flow, 3000)

	peaks := breath.FindPeaks(flow)
	assert.Len(t, peaks, 30)
	assert.Len(t, breath.Detect(flow), 29)
}

func TestSynthesizeApneas(t *testing.T) {
	flow := synthesize(params{
		Duration:    2 * time.Minute,
		Rate:        15,
		Amplitude:   0.5,
		ApneaEvery:  5,
		ApneaLength: 15 * time.Second,
	})

	times := make([]float64, len(flow))
	for i := range times {
		times[i] = float64(i) / sampleRate
	}

	m, err := breath.Analyze(times, flow)
	require.NoError(t, err)
	assert.Equal(t, 18, m.Breaths)
	assert.Equal(t, 3, m.ApneaCount)
}

func TestRun(t *testing.T) {
	out := filepath.Join(t.TempDir(), "BRP.edf")

	var stdout bytes.Buffer
	require.NoError(t, run([]string{"-out", out, "-duration", "2m", "-rate", "12"}, &stdout))
	assert.Contains(t, stdout.String(), "wrote 3000 samples")

	f, err := os.Open(out)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, f.Close())
	})

	rec, err := source.LoadEDF(f, "")
	require.NoError(t, err)
	require.Len(t, rec.Flow, 3000)
	assert.Equal(t, 0.04, rec.SamplePeriod)

	// 24 breaths, the last one has no following peak.
	assert.Len(t, breath.Detect(rec.Flow), 23)
}

func TestRunReportsCreateError(t *testing.T) {
	err := run([]string{"-out", filepath.Join(t.TempDir(), "missing", "BRP.edf"), "-duration", "1m"}, &bytes.Buffer{})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunRejectsInvalidRate(t *testing.T) {
	require.Error(t, run([]string{"-out", filepath.Join(t.TempDir(), "x.edf"), "-rate", "0"}, &bytes.Buffer{}))
}
