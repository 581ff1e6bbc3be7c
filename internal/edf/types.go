// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package edf reads and writes the EDF/EDF+ recordings produced by CPAP and
// polysomnography devices.
package edf

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type Version string

const (
	// Version0 represents the version of the EDF/EDF+ standard.
	Version0 Version = "0"
)

const (
	fixedHeaderBytes  = 256
	signalHeaderBytes = 256
	// As recommended by the EDF standard.
	maxRecordBytes = 61440
)

// ErrSignalNotFound is returned when no signal matches a requested label.
var ErrSignalNotFound = errors.New("signal not found")

// Header represents the EDF/EDF+ file header.
type Header struct {
	Version            Version       // Version of the EDF/EDF+ standard (usually "0")
	PatientID          string        // Identification of the patient
	RecordingID        string        // Identification of the recording session
	StartTime          time.Time     // Start date of the recording
	HeaderBytes        int           // Number of bytes in the header
	DataRecordDuration time.Duration // Duration of a single data record
	DataRecords        int           // Number of data records, -1 if unknown
	SignalCount        int           // Number of signals in each data record
	Signals            []Signal      // Details of each signal
}

// Signal represents the characteristics of each signal in the EDF/EDF+ file.
type Signal struct {
	Label             string  // Label of the signal (e.g., Flow.40ms)
	TransducerType    string  // Type of transducer used
	PhysicalDimension string  // Physical dimension (e.g., L/s)
	PhysicalMin       float64 // Minimum physical value
	PhysicalMax       float64 // Maximum physical value
	DigitalMin        int     // Minimum digital value
	DigitalMax        int     // Maximum digital value
	Prefiltering      string  // Pre-filtering information
	SamplesPerRecord  int     // Number of samples in each data record for this signal
	Reserved          string  // Reserved for future use
}

// SignalIndex returns the index of the first signal whose label starts with
// label, ignoring case. EDF+ annotation channels are skipped.
func (h *Header) SignalIndex(label string) (int, error) {
	want := strings.ToLower(strings.TrimSpace(label))
	for i, sig := range h.Signals {
		got := strings.ToLower(sig.Label)
		if got == "edf annotations" {
			continue
		}
		if strings.HasPrefix(got, want) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrSignalNotFound, label)
}

// SamplePeriod returns the time between two consecutive samples of a signal.
func (h *Header) SamplePeriod(signalIndex int) time.Duration {
	if signalIndex < 0 || signalIndex >= len(h.Signals) || h.Signals[signalIndex].SamplesPerRecord <= 0 {
		return 0
	}
	return h.DataRecordDuration / time.Duration(h.Signals[signalIndex].SamplesPerRecord)
}

// recordBytes is the size in bytes of one data record.
func (h *Header) recordBytes() int {
	var n int
	for _, sig := range h.Signals {
		n += sig.SamplesPerRecord * 2
	}
	return n
}

// signalField is one column of the per-signal header. Each field is stored
// for all signals in turn before the next field starts.
type signalField struct {
	name   string
	width  int
	decode func(sig *Signal, v string) error
	encode func(sig *Signal) string
}

var signalFields = []signalField{
	{"label", 16,
		func(sig *Signal, v string) error { sig.Label = v; return nil },
		func(sig *Signal) string { return sig.Label }},
	{"transducer type", 80,
		func(sig *Signal, v string) error { sig.TransducerType = v; return nil },
		func(sig *Signal) string { return sig.TransducerType }},
	{"physical dimension", 8,
		func(sig *Signal, v string) error { sig.PhysicalDimension = v; return nil },
		func(sig *Signal) string { return sig.PhysicalDimension }},
	{"physical minimum", 8,
		func(sig *Signal, v string) (err error) { sig.PhysicalMin, err = strconv.ParseFloat(v, 64); return },
		func(sig *Signal) string { return formatPhysicalValue(sig.PhysicalMin) }},
	{"physical maximum", 8,
		func(sig *Signal, v string) (err error) { sig.PhysicalMax, err = strconv.ParseFloat(v, 64); return },
		func(sig *Signal) string { return formatPhysicalValue(sig.PhysicalMax) }},
	{"digital minimum", 8,
		func(sig *Signal, v string) (err error) { sig.DigitalMin, err = strconv.Atoi(v); return },
		func(sig *Signal) string { return strconv.Itoa(sig.DigitalMin) }},
	{"digital maximum", 8,
		func(sig *Signal, v string) (err error) { sig.DigitalMax, err = strconv.Atoi(v); return },
		func(sig *Signal) string { return strconv.Itoa(sig.DigitalMax) }},
	{"prefiltering", 80,
		func(sig *Signal, v string) error { sig.Prefiltering = v; return nil },
		func(sig *Signal) string { return sig.Prefiltering }},
	{"samples per record", 8,
		func(sig *Signal, v string) (err error) { sig.SamplesPerRecord, err = strconv.Atoi(v); return },
		func(sig *Signal) string { return strconv.Itoa(sig.SamplesPerRecord) }},
	{"reserved", 32,
		func(sig *Signal, v string) error { sig.Reserved = v; return nil },
		func(sig *Signal) string { return sig.Reserved }},
}

// toPhysical converts a digital sample to its physical value using the
// signal's calibration.
func (sig *Signal) toPhysical(digital int16) float64 {
	if sig.DigitalMax == sig.DigitalMin {
		return 0
	}
	return sig.PhysicalMin + (float64(digital)-float64(sig.DigitalMin))*(sig.PhysicalMax-sig.PhysicalMin)/float64(sig.DigitalMax-sig.DigitalMin)
}

// toDigital converts a physical value to a digital sample, clamped to the
// signal's digital range.
func (sig *Signal) toDigital(physical float64) int16 {
	if sig.PhysicalMax == sig.PhysicalMin {
		return 0
	}
	digital := (physical-sig.PhysicalMin)*float64(sig.DigitalMax-sig.DigitalMin)/(sig.PhysicalMax-sig.PhysicalMin) + float64(sig.DigitalMin)
	digital = max(float64(sig.DigitalMin), min(float64(sig.DigitalMax), digital))
	return int16(math.Round(digital))
}

func formatPhysicalValue(val float64) string {
	// Try with 2 decimal places
	s := strconv.FormatFloat(val, 'f', 2, 64)
	if len(s) > 8 {
		// Fall back to no decimal
		s = strconv.FormatFloat(val, 'f', 0, 64)
	}
	return s
}

// pad left-aligns s in a field of the given width, truncating if needed.
func pad(s string, width int) string {
	if len(s) > width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}
