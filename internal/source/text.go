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
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// LoadText reads flow samples separated by newlines, commas, semicolons or
// whitespace. Blank lines and text after a '#' are ignored. samplePeriod is
// the time in seconds between samples; a non-positive value means one second.
func LoadText(r io.Reader, samplePeriod float64) (*Recording, error) {
	if samplePeriod <= 0 {
		samplePeriod = 1
	}

	var flow []float64

	scanner := bufio.NewScanner(r)
	// A whole recording may sit on one delimited line.
	scanner.Buffer(make([]byte, 0, 64*1024), math.MaxInt32)
	line := 0
	for scanner.Scan() {
		line++

		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}

		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ';' || unicode.IsSpace(r)
		})
		for _, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil || math.IsNaN(v) {
				return nil, fmt.Errorf("%w %q on line %d", ErrInvalidSample, field, line)
			}
			flow = append(flow, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading samples: %w", err)
	}

	return &Recording{
		Format:       FormatText,
		SamplePeriod: samplePeriod,
		Time:         indexTime(len(flow), samplePeriod),
		Flow:         flow,
	}, nil
}
