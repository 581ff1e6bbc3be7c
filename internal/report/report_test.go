// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package report_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/OpenPSG/breath"
	"github.com/OpenPSG/breath/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v2"
)

func sampleMetrics() *breath.Metrics {
	return &breath.Metrics{
		RunID:         "3f2b8c1e-6a0d-4c59-9d44-0f1e2a3b4c5d",
		Duration:      18,
		Breaths:       2,
		BreathRateBPM: 6.5,
		BreathIndices: []int{1, 3},
		BreathTimes:   []float64{1, 15},
		ApneaCount:    1,
		Leakage:       24,
	}
}

func TestEncodeJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.Encode(&buf, sampleMetrics(), report.JSON))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))

	assert.Equal(t, 2.0, got["breaths"])
	assert.Equal(t, 6.5, got["breath_rate_bpm"])
	assert.Equal(t, []any{1.0, 15.0}, got["breath_times"])
	assert.Equal(t, 1.0, got["apnea_count"])
}

func TestEncodeYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.Encode(&buf, sampleMetrics(), report.YAML))

	var got breath.Metrics
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, *sampleMetrics(), got)
	assert.Contains(t, buf.String(), "breath_rate_bpm: 6.5")
}

func TestEncodeMsgPack(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.Encode(&buf, sampleMetrics(), report.MsgPack))

	var got map[string]any
	require.NoError(t, msgpack.Unmarshal(buf.Bytes(), &got))
	assert.EqualValues(t, 2, got["breaths"])
	assert.Equal(t, "3f2b8c1e-6a0d-4c59-9d44-0f1e2a3b4c5d", got["run_id"])
}

func TestEncodeUnknown(t *testing.T) {
	err := report.Encode(&bytes.Buffer{}, sampleMetrics(), "xml")
	require.ErrorIs(t, err, report.ErrUnknownEncoding)
}

func TestParseEncoding(t *testing.T) {
	enc, err := report.ParseEncoding("")
	require.NoError(t, err)
	assert.Equal(t, report.JSON, enc)

	enc, err = report.ParseEncoding("MsgPack")
	require.NoError(t, err)
	assert.Equal(t, report.MsgPack, enc)

	_, err = report.ParseEncoding("xml")
	require.ErrorIs(t, err, report.ErrUnknownEncoding)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("sample_data", "patient_01.json"),
		report.OutputPath(filepath.Join("sample_data", "patient_01.txt"), "", report.JSON))
	assert.Equal(t, filepath.Join("out", "1.yaml"), report.OutputPath("1.txt", "out", report.YAML))
	assert.Equal(t, "BRP.msgpack", report.OutputPath("BRP.edf", "", report.MsgPack))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patient_01.json")
	require.NoError(t, report.WriteFile(path, sampleMetrics(), report.JSON))

	b, err := os.ReadFile(path)
	require.NoError(t, err)

	var got breath.Metrics
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, *sampleMetrics(), got)

	err = report.WriteFile(filepath.Join(t.TempDir(), "missing", "x.json"), sampleMetrics(), report.JSON)
	require.Error(t, err)
}
