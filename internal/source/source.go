// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package source loads flow recordings from the file formats CPAP devices
// and their tooling produce.
package source

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Format identifies the layout of a recording file.
type Format string

const (
	// FormatAuto picks the format from the file extension.
	FormatAuto Format = "auto"
	// FormatText is a plain list of flow samples.
	FormatText Format = "text"
	// FormatPressure is a CSV of raw venturi ADC pressure readings.
	FormatPressure Format = "pressure"
	// FormatEDF is an EDF/EDF+ recording with a flow channel.
	FormatEDF Format = "edf"
)

var (
	// ErrUnknownFormat is returned for an unsupported format name.
	ErrUnknownFormat = errors.New("unknown input format")
	// ErrInvalidSample is returned when a text sample is not a number.
	ErrInvalidSample = errors.New("invalid flow sample")
)

// DefaultSignal is the EDF signal label prefix used when none is configured.
// ResMed devices label their flow channel "Flow.40ms".
const DefaultSignal = "Flow"

// Recording is a flow signal with the time of each sample.
type Recording struct {
	Format       Format
	Start        time.Time // Zero if the source carries no start time
	SamplePeriod float64   // Seconds between samples, 0 if irregular
	Time         []float64 // Seconds since the first sample
	Flow         []float64 // L/s
}

// Options control how a recording is loaded.
type Options struct {
	Format       Format
	Signal       string  // EDF signal label prefix
	SamplePeriod float64 // Seconds per sample for text input
	Logger       *zap.Logger
}

// ParseFormat converts a format name into a Format.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FormatAuto, nil
	case FormatAuto, FormatText, FormatPressure, FormatEDF:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// DetectFormat picks a format from the file extension. Load additionally
// recognises pressure recordings saved with a .txt extension by their header.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".edf":
		return FormatEDF
	case ".csv":
		return FormatPressure
	default:
		return FormatText
	}
}

// Load reads the recording stored at path.
func Load(path string, opts Options) (*Recording, error) {
	format := opts.Format
	auto := format == "" || format == FormatAuto
	if auto {
		format = DetectFormat(path)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening recording: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if auto && format == FormatText && hasPressureHeader(br) {
		format = FormatPressure
	}

	var rec *Recording
	switch format {
	case FormatText:
		rec, err = LoadText(br, opts.SamplePeriod)
	case FormatPressure:
		rec, err = LoadPressure(br, logger)
	case FormatEDF:
		rec, err = LoadEDF(f, opts.Signal)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("error loading %s recording %s: %w", format, path, err)
	}

	logger.Debug("loaded recording",
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.Int("samples", len(rec.Flow)))

	return rec, nil
}

// hasPressureHeader reports whether the first line is a non-numeric header
// with one column per pressure reading.
func hasPressureHeader(br *bufio.Reader) bool {
	// A short file returns fewer bytes along with an error.
	b, _ := br.Peek(4096)
	line, _, _ := strings.Cut(string(b), "\n")

	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != pressureColumns {
		return false
	}
	for _, field := range fields {
		if _, err := strconv.ParseFloat(strings.TrimSpace(field), 64); err != nil {
			return true
		}
	}
	return false
}

func indexTime(n int, period float64) []float64 {
	t := make([]float64, n)
	for i := range t {
		t[i] = float64(i) * period
	}
	return t
}
