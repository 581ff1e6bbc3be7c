// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Venturi tube geometry and air density.
const (
	airDensity      = 1.199 // kg/m^3
	inletDiameter   = 0.015 // m
	throatDiameter  = 0.012 // m
	pressureColumns = 7
)

// ADC calibration from the pressure sensor data sheet.
const (
	adcMin         = 1638
	adcMax         = 14745
	adcSpanCmH2O   = 25.4
	pascalPerCmH2O = 98.0665
)

// ConvertADCToPressure converts a raw sensor reading into Pa.
func ConvertADCToPressure(adc float64) float64 {
	cmH2O := adcSpanCmH2O / (adcMax - adcMin) * (adc - adcMin)
	return cmH2O * pascalPerCmH2O
}

// VenturiFlow returns the volumetric flow in L/s through the venturi tube for
// an inlet pressure p1 and throat pressure p2 in Pa. A negative pressure drop
// has no physical flow and yields 0.
func VenturiFlow(p1, p2 float64) float64 {
	a1 := math.Pi * math.Pow(inletDiameter/2, 2)
	a2 := math.Pi * math.Pow(throatDiameter/2, 2)

	drop := p1 - p2
	if drop <= 0 {
		return 0
	}

	return 1000 * a1 * math.Sqrt(2*drop/(airDensity*(math.Pow(a1/a2, 2)-1)))
}

// PressureFlow derives the signed flow from the throat pressure and the
// inspiratory and expiratory inlet pressures. Expiratory flow is negative.
func PressureFlow(p2, inspiratory, expiratory float64) float64 {
	if inspiratory >= expiratory {
		return VenturiFlow(inspiratory, p2)
	}
	return -VenturiFlow(expiratory, p2)
}

// LoadPressure reads a CSV of venturi readings. The first line is a header.
// Each row holds seven numbers: time in seconds, the throat, inspiratory and
// expiratory ADC readings, then three further channels that are not used.
// Malformed rows are logged and skipped.
func LoadPressure(r io.Reader, logger *zap.Logger) (*Recording, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	rec := &Recording{Format: FormatPressure}

	// Skip the header line.
	var parseErr *csv.ParseError
	if _, err := cr.Read(); err != nil && !errors.As(err, &parseErr) {
		if errors.Is(err, io.EOF) {
			return rec, nil
		}
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	var values [pressureColumns]float64
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.As(err, &parseErr) {
			logger.Error("skipping pressure row", zap.Int("line", parseErr.StartLine), zap.Error(err))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error reading row: %w", err)
		}

		line, _ := cr.FieldPos(0)
		if err := parsePressureRow(row, values[:]); err != nil {
			logger.Error("skipping pressure row", zap.Int("line", line), zap.Error(err))
			continue
		}

		pressures := [3]float64{
			ConvertADCToPressure(values[1]),
			ConvertADCToPressure(values[2]),
			ConvertADCToPressure(values[3]),
		}

		rec.Time = append(rec.Time, values[0])
		rec.Flow = append(rec.Flow, PressureFlow(pressures[0], pressures[1], pressures[2]))
	}

	return rec, nil
}

func parsePressureRow(row []string, values []float64) error {
	if len(row) != pressureColumns {
		return fmt.Errorf("missing or additional values: got %d, want %d", len(row), pressureColumns)
	}

	for i, field := range row {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return fmt.Errorf("non-numerical value %q", field)
		}
		if math.IsNaN(v) {
			return fmt.Errorf("value in column %d is NaN", i)
		}
		values[i] = v
	}

	return nil
}
