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
	"fmt"
	"io"
	"strconv"
)

// Writer writes EDF files.
type Writer struct {
	w           io.WriteSeeker
	hdr         Header
	dataRecords int // Number of data records written so far.
	buf         []byte
}

// Create creates a new EDF writer that writes to the given writer.
func Create(w io.WriteSeeker, hdr Header) (*Writer, error) {
	if hdr.SignalCount == 0 {
		hdr.SignalCount = len(hdr.Signals)
	}
	if hdr.SignalCount != len(hdr.Signals) {
		return nil, fmt.Errorf("signal count %d does not match %d signal headers", hdr.SignalCount, len(hdr.Signals))
	}
	if hdr.Version == "" {
		hdr.Version = Version0
	}

	hdr.Signals = append([]Signal(nil), hdr.Signals...)
	hdr.HeaderBytes = fixedHeaderBytes + hdr.SignalCount*signalHeaderBytes
	hdr.DataRecords = -1 // Unknown number of data records (at this time).

	size := hdr.recordBytes()
	if size > maxRecordBytes {
		return nil, fmt.Errorf("data record too large: %d bytes, max is %d bytes", size, maxRecordBytes)
	}

	ew := &Writer{w: w, hdr: hdr, buf: make([]byte, size)}

	// Write the initial header
	if err := ew.writeHeader(); err != nil {
		return nil, fmt.Errorf("error writing header: %w", err)
	}

	return ew, nil
}

// Close finalizes the EDF file by updating the header with the total number of data records.
func (ew *Writer) Close() error {
	ew.hdr.DataRecords = ew.dataRecords
	if err := ew.writeHeader(); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	if _, err := ew.w.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("error seeking to end: %w", err)
	}

	return nil
}

// WriteRecord writes a single data record. signals holds, for every signal in
// header order, exactly SamplesPerRecord physical values.
func (ew *Writer) WriteRecord(signals [][]float64) error {
	if len(signals) != ew.hdr.SignalCount {
		return fmt.Errorf("expected %d signals, got %d", ew.hdr.SignalCount, len(signals))
	}

	off := 0
	for i, samples := range signals {
		sig := &ew.hdr.Signals[i]
		if len(samples) != sig.SamplesPerRecord {
			return fmt.Errorf("signal %d: expected %d samples, got %d", i, sig.SamplesPerRecord, len(samples))
		}

		for _, sample := range samples {
			binary.LittleEndian.PutUint16(ew.buf[off:], uint16(sig.toDigital(sample)))
			off += 2
		}
	}

	if _, err := ew.w.Write(ew.buf); err != nil {
		return fmt.Errorf("error writing data record: %w", err)
	}

	ew.dataRecords++
	return nil
}

// writeHeader rewinds the underlying writer and writes the full header.
func (ew *Writer) writeHeader() error {
	if _, err := ew.w.Seek(0, io.SeekStart); err != nil {
		return err
	}

	writer := bufio.NewWriter(ew.w)

	fixed := []struct {
		value string
		width int
	}{
		{string(ew.hdr.Version), 8},
		{ew.hdr.PatientID, 80},
		{ew.hdr.RecordingID, 80},
		{ew.hdr.StartTime.Format("02.01.06"), 8},
		{ew.hdr.StartTime.Format("15.04.05"), 8},
		{strconv.Itoa(ew.hdr.HeaderBytes), 8},
		{"", 44},
		{strconv.Itoa(ew.hdr.DataRecords), 8},
		{strconv.FormatFloat(ew.hdr.DataRecordDuration.Seconds(), 'f', -1, 64), 8},
		{strconv.Itoa(ew.hdr.SignalCount), 4},
	}
	for _, f := range fixed {
		if _, err := writer.WriteString(pad(f.value, f.width)); err != nil {
			return err
		}
	}

	for _, f := range signalFields {
		for i := range ew.hdr.Signals {
			if _, err := writer.WriteString(pad(f.encode(&ew.hdr.Signals[i]), f.width)); err != nil {
				return err
			}
		}
	}

	return writer.Flush()
}
