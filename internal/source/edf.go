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
	"fmt"
	"io"

	"github.com/OpenPSG/breath/internal/edf"
)

// LoadEDF reads the signal whose label starts with label (DefaultSignal if
// empty) from an EDF/EDF+ recording.
func LoadEDF(r io.ReadSeeker, label string) (*Recording, error) {
	if label == "" {
		label = DefaultSignal
	}

	er, err := edf.Open(r)
	if err != nil {
		return nil, err
	}

	hdr := er.Header()
	idx, err := hdr.SignalIndex(label)
	if err != nil {
		return nil, err
	}

	sr, err := er.Signal(idx)
	if err != nil {
		return nil, err
	}

	flow, err := sr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading signal %q: %w", hdr.Signals[idx].Label, err)
	}

	period := hdr.SamplePeriod(idx).Seconds()
	return &Recording{
		Format:       FormatEDF,
		Start:        hdr.StartTime,
		SamplePeriod: period,
		Time:         indexTime(len(flow), period),
		Flow:         flow,
	}, nil
}
