// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package report writes breath metrics to disk.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/OpenPSG/breath"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v2"
)

// Encoding is the serialization used for a metrics report.
type Encoding string

const (
	// JSON is the default report encoding.
	JSON Encoding = "json"
	// YAML writes the report as a YAML document.
	YAML Encoding = "yaml"
	// MsgPack writes the report as MessagePack, keyed like the JSON report.
	MsgPack Encoding = "msgpack"
)

// ErrUnknownEncoding is returned for an unsupported encoding name.
var ErrUnknownEncoding = errors.New("unknown report encoding")

// ParseEncoding converts an encoding name into an Encoding. An empty name
// selects JSON.
func ParseEncoding(name string) (Encoding, error) {
	switch e := Encoding(strings.ToLower(strings.TrimSpace(name))); e {
	case "":
		return JSON, nil
	case JSON, YAML, MsgPack:
		return e, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
}

// Encode writes m to w.
func Encode(w io.Writer, m *breath.Metrics, enc Encoding) error {
	switch enc {
	case JSON:
		return json.NewEncoder(w).Encode(m)
	case YAML:
		b, err := yaml.Marshal(m)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	case MsgPack:
		encoder := msgpack.NewEncoder(w)
		encoder.SetCustomStructTag("json") // Same field names as the JSON report
		return encoder.Encode(m)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEncoding, enc)
	}
}

// OutputPath returns the report path for a recording: the recording's base
// name with the encoding as extension, placed in dir, or next to the
// recording if dir is empty.
func OutputPath(input, dir string, enc Encoding) string {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	if dir == "" {
		dir = filepath.Dir(input)
	}

	return filepath.Join(dir, base+"."+string(enc))
}

// WriteFile encodes m into the file at path, replacing any existing file.
func WriteFile(path string, m *breath.Metrics, enc Encoding) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("error closing report: %w", cerr)
		}
	}()

	if err := Encode(f, m, enc); err != nil {
		return fmt.Errorf("error encoding report: %w", err)
	}

	return nil
}
