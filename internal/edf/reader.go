// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Reader reads EDF/EDF+ files.
type Reader struct {
	r   io.ReadSeeker
	hdr *Header
}

// Open opens an EDF/EDF+ file for reading.
func Open(r io.ReadSeeker) (*Reader, error) {
	br := bufio.NewReader(r)

	b := make([]byte, fixedHeaderBytes)
	if _, err := io.ReadFull(br, b); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	hdr, err := parseFixedHeader(b)
	if err != nil {
		return nil, err
	}

	// Each signal field is stored for every signal before the next field.
	hdr.Signals = make([]Signal, hdr.SignalCount)
	for _, f := range signalFields {
		b := make([]byte, f.width*hdr.SignalCount)
		if _, err := io.ReadFull(br, b); err != nil {
			return nil, fmt.Errorf("error reading signal %s: %w", f.name, err)
		}

		for i := range hdr.Signals {
			v := strings.TrimSpace(string(b[i*f.width : (i+1)*f.width]))
			if err := f.decode(&hdr.Signals[i], v); err != nil {
				return nil, fmt.Errorf("error parsing %s of signal %d: %w", f.name, i, err)
			}
		}
	}

	return &Reader{
		r:   r,
		hdr: hdr,
	}, nil
}

func parseFixedHeader(b []byte) (*Header, error) {
	field := func(from, to int) string {
		return strings.TrimSpace(string(b[from:to]))
	}

	hdr := &Header{
		Version:     Version(field(0, 8)),
		PatientID:   field(8, 88),
		RecordingID: field(88, 168),
	}

	startDate, err := time.Parse("02.01.06", field(168, 176))
	if err != nil {
		return nil, fmt.Errorf("error parsing start date: %w", err)
	}
	startTime, err := time.Parse("15.04.05", field(176, 184))
	if err != nil {
		return nil, fmt.Errorf("error parsing start time: %w", err)
	}
	hdr.StartTime = time.Date(startDate.Year(), startDate.Month(), startDate.Day(),
		startTime.Hour(), startTime.Minute(), startTime.Second(), 0, time.UTC)

	if hdr.HeaderBytes, err = strconv.Atoi(field(184, 192)); err != nil {
		return nil, fmt.Errorf("error parsing header bytes: %w", err)
	}

	// Bytes 192-236 are reserved (EDF+ stores "EDF+C" / "EDF+D" here).

	if hdr.DataRecords, err = strconv.Atoi(field(236, 244)); err != nil {
		return nil, fmt.Errorf("error parsing number of data records: %w", err)
	}

	seconds, err := strconv.ParseFloat(field(244, 252), 64)
	if err != nil {
		return nil, fmt.Errorf("error parsing data record duration: %w", err)
	}
	hdr.DataRecordDuration = time.Duration(seconds * float64(time.Second))

	if hdr.SignalCount, err = strconv.Atoi(field(252, 256)); err != nil {
		return nil, fmt.Errorf("error parsing signal count: %w", err)
	}
	if hdr.SignalCount < 0 {
		return nil, fmt.Errorf("invalid signal count: %d", hdr.SignalCount)
	}

	return hdr, nil
}

// Header returns a copy of the parsed file header.
func (er *Reader) Header() Header {
	hdr := *er.hdr
	hdr.Signals = append([]Signal(nil), er.hdr.Signals...)
	return hdr
}

// SignalReader reads continuous signal data from an EDF/EDF+ file, one data
// record at a time.
type SignalReader struct {
	r            io.ReadSeeker
	signal       Signal
	headerBytes  int64
	dataRecords  int   // -1 if unknown
	recordSize   int64 // Total size of one data record
	signalOffset int64 // Byte offset of the signal in a record
	record       int   // Next record to load
	raw          []byte
	decoded      []float64
	pending      []float64 // Decoded samples not yet returned
}

// Signal creates a new SignalReader for a specified signal index.
func (er *Reader) Signal(signalIndex int) (*SignalReader, error) {
	if signalIndex < 0 || signalIndex >= len(er.hdr.Signals) {
		return nil, fmt.Errorf("signal index out of range")
	}

	var signalOffset int
	for _, sig := range er.hdr.Signals[:signalIndex] {
		signalOffset += sig.SamplesPerRecord * 2
	}

	signal := er.hdr.Signals[signalIndex]
	return &SignalReader{
		r:            er.r,
		signal:       signal,
		headerBytes:  int64(er.hdr.HeaderBytes),
		dataRecords:  er.hdr.DataRecords,
		recordSize:   int64(er.hdr.recordBytes()),
		signalOffset: int64(signalOffset),
		raw:          make([]byte, signal.SamplesPerRecord*2),
		decoded:      make([]float64, signal.SamplesPerRecord),
	}, nil
}

// Read fills the provided float64 slice with the physical values from the
// signal. It returns io.EOF once every data record has been consumed.
func (sr *SignalReader) Read(data []float64) (int, error) {
	n := 0
	for n < len(data) {
		if len(sr.pending) == 0 {
			if err := sr.loadRecord(); err != nil {
				return n, err
			}
		}

		c := copy(data[n:], sr.pending)
		sr.pending = sr.pending[c:]
		n += c
	}

	return n, nil
}

// ReadAll reads the remaining samples of the signal.
func (sr *SignalReader) ReadAll() ([]float64, error) {
	var samples []float64
	if sr.dataRecords > 0 {
		samples = make([]float64, 0, sr.dataRecords*len(sr.decoded))
	}

	for {
		if len(sr.pending) == 0 {
			if err := sr.loadRecord(); err != nil {
				if errors.Is(err, io.EOF) {
					return samples, nil
				}
				return samples, err
			}
		}
		samples = append(samples, sr.pending...)
		sr.pending = nil
	}
}

func (sr *SignalReader) loadRecord() error {
	if len(sr.raw) == 0 {
		return io.EOF
	}
	if sr.dataRecords >= 0 && sr.record >= sr.dataRecords {
		return io.EOF // End of data records
	}

	pos := sr.headerBytes + int64(sr.record)*sr.recordSize + sr.signalOffset
	if _, err := sr.r.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("error seeking to position: %w", err)
	}

	if _, err := io.ReadFull(sr.r, sr.raw); err != nil {
		// Recordings still being written carry an unknown record count.
		if sr.dataRecords < 0 && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
			return io.EOF
		}
		return fmt.Errorf("error reading sample data: %w", err)
	}

	for i := range sr.decoded {
		digital := int16(binary.LittleEndian.Uint16(sr.raw[i*2:]))
		sr.decoded[i] = sr.signal.toPhysical(digital)
	}

	sr.pending = sr.decoded
	sr.record++
	return nil
}
