// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenPSG/breath/internal/edf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flowSignal(samples int) edf.Signal {
	return edf.Signal{
		Label:             "Flow.40ms",
		TransducerType:    "Pneumotachograph",
		PhysicalDimension: "L/s",
		PhysicalMin:       -2,
		PhysicalMax:       2,
		DigitalMin:        -1000,
		DigitalMax:        1000,
		SamplesPerRecord:  samples,
	}
}

func createFile(t *testing.T) *os.File {
	f, err := os.OpenFile(filepath.Join(t.TempDir(), "test.edf"), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, f.Close())
	})
	return f
}

func TestRoundTrip(t *testing.T) {
	f := createFile(t)

	start := time.Date(2024, 3, 14, 22, 30, 5, 0, time.UTC)
	hdr := edf.Header{
		PatientID:          "Patient X",
		RecordingID:        "Startdate 14-MAR-2024 BRP",
		StartTime:          start,
		DataRecordDuration: 60 * time.Second,
		Signals: []edf.Signal{
			{
				Label:             "Press.40ms",
				PhysicalDimension: "cmH2O",
				PhysicalMin:       0,
				PhysicalMax:       30,
				DigitalMin:        0,
				DigitalMax:        30000,
				SamplesPerRecord:  10,
			},
			flowSignal(25),
		},
	}

	ew, err := edf.Create(f, hdr)
	require.NoError(t, err)

	pressure := make([]float64, 10)
	for i := range pressure {
		pressure[i] = 10
	}

	for rec := 0; rec < 2; rec++ {
		flow := make([]float64, 25)
		for i := range flow {
			flow[i] = float64(rec*25+i)/25 - 1
		}
		require.NoError(t, ew.WriteRecord([][]float64{pressure, flow}))
	}

	// Close the writer (this writes the header)
	require.NoError(t, ew.Close())

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	er, err := edf.Open(f)
	require.NoError(t, err)

	got := er.Header()
	assert.Equal(t, edf.Version0, got.Version)
	assert.Equal(t, "Patient X", got.PatientID)
	assert.Equal(t, start, got.StartTime)
	assert.Equal(t, 2, got.DataRecords)
	assert.Equal(t, 2, got.SignalCount)
	assert.Equal(t, 3*256, got.HeaderBytes)
	assert.Equal(t, 60*time.Second, got.DataRecordDuration)
	assert.Equal(t, "L/s", got.Signals[1].PhysicalDimension)
	assert.Equal(t, 2400*time.Millisecond, got.SamplePeriod(1))

	idx, err := got.SignalIndex("flow")
	require.NoError(t, err)
	require.Equal(t, 1, idx)

	sr, err := er.Signal(idx)
	require.NoError(t, err)

	samples, err := sr.ReadAll()
	require.NoError(t, err)
	require.Len(t, samples, 50)

	for i, sample := range samples {
		assert.InDelta(t, float64(i)/25-1, sample, 0.005)
	}

	// Reader should now return EOF
	_, err = sr.Read(make([]float64, 1))
	require.Equal(t, io.EOF, err)
}

func TestReadAcrossRecords(t *testing.T) {
	f := createFile(t)

	ew, err := edf.Create(f, edf.Header{
		StartTime:          time.Now(),
		DataRecordDuration: time.Second,
		Signals:            []edf.Signal{flowSignal(4)},
	})
	require.NoError(t, err)

	require.NoError(t, ew.WriteRecord([][]float64{{0, 0.5, 1, 1.5}}))
	require.NoError(t, ew.WriteRecord([][]float64{{-0.5, -1, -1.5, -2}}))
	require.NoError(t, ew.Close())

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	er, err := edf.Open(f)
	require.NoError(t, err)

	sr, err := er.Signal(0)
	require.NoError(t, err)

	buf := make([]float64, 3)
	n, err := sr.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	assert.InDeltaSlice(t, []float64{0, 0.5, 1}, buf, 0.005)

	n, err = sr.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	assert.InDeltaSlice(t, []float64{1.5, -0.5, -1}, buf, 0.005)

	n, err = sr.Read(buf)
	require.Equal(t, io.EOF, err)
	require.Equal(t, 2, n)
	assert.InDeltaSlice(t, []float64{-1.5, -2}, buf[:n], 0.005)
}

func TestUnknownRecordCount(t *testing.T) {
	f := createFile(t)

	ew, err := edf.Create(f, edf.Header{
		StartTime:          time.Now(),
		DataRecordDuration: time.Second,
		Signals:            []edf.Signal{flowSignal(5)},
	})
	require.NoError(t, err)

	// The writer is never closed, so the header still says -1 records.
	for i := 0; i < 3; i++ {
		require.NoError(t, ew.WriteRecord([][]float64{{0.1, 0.2, 0.3, 0.4, 0.5}}))
	}

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	er, err := edf.Open(f)
	require.NoError(t, err)
	require.Equal(t, -1, er.Header().DataRecords)

	sr, err := er.Signal(0)
	require.NoError(t, err)

	samples, err := sr.ReadAll()
	require.NoError(t, err)
	assert.Len(t, samples, 15)
}

func TestClampsOutOfRangeValues(t *testing.T) {
	f := createFile(t)

	ew, err := edf.Create(f, edf.Header{
		StartTime:          time.Now(),
		DataRecordDuration: time.Second,
		Signals:            []edf.Signal{flowSignal(2)},
	})
	require.NoError(t, err)
	require.NoError(t, ew.WriteRecord([][]float64{{-10, 10}}))
	require.NoError(t, ew.Close())

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	er, err := edf.Open(f)
	require.NoError(t, err)
	sr, err := er.Signal(0)
	require.NoError(t, err)

	samples, err := sr.ReadAll()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-2, 2}, samples, 1e-9)
}

func TestWriterErrors(t *testing.T) {
	f := createFile(t)

	_, err := edf.Create(f, edf.Header{
		SignalCount: 2,
		Signals:     []edf.Signal{flowSignal(1)},
	})
	require.Error(t, err)

	_, err = edf.Create(f, edf.Header{
		Signals: []edf.Signal{flowSignal(40000)},
	})
	require.ErrorContains(t, err, "data record too large")

	ew, err := edf.Create(f, edf.Header{
		StartTime:          time.Now(),
		DataRecordDuration: time.Second,
		Signals:            []edf.Signal{flowSignal(3)},
	})
	require.NoError(t, err)

	require.Error(t, ew.WriteRecord(nil))
	require.Error(t, ew.WriteRecord([][]float64{{1, 2}}))
}

func TestOpenErrors(t *testing.T) {
	_, err := edf.Open(bytes.NewReader([]byte("0       short")))
	require.ErrorContains(t, err, "error reading header")

	hdr := make([]byte, 256)
	copy(hdr, "0       ")
	for i := 8; i < len(hdr); i++ {
		hdr[i] = ' '
	}
	_, err = edf.Open(bytes.NewReader(hdr))
	require.ErrorContains(t, err, "error parsing start date")
}

func TestSignalIndexNotFound(t *testing.T) {
	hdr := edf.Header{
		Signals: []edf.Signal{
			{Label: "EDF Annotations"},
			{Label: "Press.2s"},
		},
	}

	_, err := hdr.SignalIndex("Flow")
	require.ErrorIs(t, err, edf.ErrSignalNotFound)

	_, err = hdr.SignalIndex("edf")
	require.ErrorIs(t, err, edf.ErrSignalNotFound)

	idx, err := hdr.SignalIndex("press")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}
