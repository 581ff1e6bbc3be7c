// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package config loads the breath analysis configuration file.
package config

import (
	"fmt"
	"os"

	"github.com/OpenPSG/breath/internal/report"
	"github.com/OpenPSG/breath/internal/source"
	"gopkg.in/yaml.v2"
)

// Config is the top-level configuration.
type Config struct {
	Input    InputConfig    `yaml:"input,omitempty"`
	Detector DetectorConfig `yaml:"detector,omitempty"`
	Output   OutputConfig   `yaml:"output,omitempty"`
	Debug    bool           `yaml:"debug,omitempty"`
}

// InputConfig selects how the recording is read.
type InputConfig struct {
	Format       string  `yaml:"format,omitempty"`
	Signal       string  `yaml:"signal,omitempty"`
	SamplePeriod float64 `yaml:"sample-period,omitempty"`
}

// DetectorConfig controls the breath detector.
type DetectorConfig struct {
	Strict bool `yaml:"strict,omitempty"`
}

// OutputConfig controls where and how the metrics report is written.
type OutputConfig struct {
	Encoding string `yaml:"encoding,omitempty"`
	Dir      string `yaml:"dir,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Input: InputConfig{
			Format:       string(source.FormatAuto),
			Signal:       source.DefaultSignal,
			SamplePeriod: 1,
		},
		Output: OutputConfig{
			Encoding: string(report.JSON),
		},
	}
}

// NewConfig reads the configuration file at filename. Settings missing from
// the file keep their default values.
func NewConfig(filename string) (Config, error) {
	c := Default()

	cfgFile, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, err
	}

	if err := yaml.UnmarshalStrict(cfgFile, &c); err != nil {
		return Config{}, fmt.Errorf("error parsing %s: %w", filename, err)
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

// Validate checks that the named formats and encodings are supported.
func (c Config) Validate() error {
	if _, err := source.ParseFormat(c.Input.Format); err != nil {
		return err
	}
	if _, err := report.ParseEncoding(c.Output.Encoding); err != nil {
		return err
	}
	if c.Input.SamplePeriod < 0 {
		return fmt.Errorf("sample-period must not be negative: %v", c.Input.SamplePeriod)
	}
	return nil
}

// SourceOptions returns the loader options described by the input section.
func (c Config) SourceOptions() source.Options {
	format, _ := source.ParseFormat(c.Input.Format)
	return source.Options{
		Format:       format,
		Signal:       c.Input.Signal,
		SamplePeriod: c.Input.SamplePeriod,
	}
}

// ReportEncoding returns the configured report encoding.
func (c Config) ReportEncoding() report.Encoding {
	enc, err := report.ParseEncoding(c.Output.Encoding)
	if err != nil {
		return report.JSON
	}
	return enc
}
