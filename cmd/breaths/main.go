// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Command breaths detects the breaths in a CPAP flow recording, prints the
// sample index of each breath and writes a metrics report next to the input.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/OpenPSG/breath"
	"github.com/OpenPSG/breath/internal/config"
	"github.com/OpenPSG/breath/internal/log"
	"github.com/OpenPSG/breath/internal/report"
	"github.com/OpenPSG/breath/internal/source"
	"github.com/google/uuid"
)

const version = "0.1-" + runtime.GOOS + "/" + runtime.GOARCH

var errUsage = errors.New("usage: breaths [flags] <recording>")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "breaths: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("breaths", flag.ContinueOnError)
	cfgFile := fs.String("config", "", "Path to a YAML configuration file")
	format := fs.String("format", "", "Input format: auto, text, pressure or edf")
	signal := fs.String("signal", "", "EDF signal label prefix holding the flow (default \"Flow\")")
	samplePeriod := fs.Float64("sample-period", 0, "Seconds between samples of a text recording")
	strict := fs.Bool("strict", false, "Fail on a recording without samples")
	encoding := fs.String("output", "", "Report encoding: json, yaml or msgpack")
	outputDir := fs.String("output-dir", "", "Directory for the report (default: next to the recording)")
	noReport := fs.Bool("no-report", false, "Only print the breath indices")
	debug := fs.Bool("debug", false, "Turn on debugging output")
	showVersion := fs.Bool("version", false, "Show version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Fprintf(stdout, "breaths %s\n", version)
		return nil
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}
	input := fs.Arg(0)

	cfg := config.Default()
	if *cfgFile != "" {
		var err error
		if cfg, err = config.NewConfig(*cfgFile); err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}
	}

	// Flags given on the command line take precedence over the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "format":
			cfg.Input.Format = *format
		case "signal":
			cfg.Input.Signal = *signal
		case "sample-period":
			cfg.Input.SamplePeriod = *samplePeriod
		case "strict":
			cfg.Detector.Strict = *strict
		case "output":
			cfg.Output.Encoding = *encoding
		case "output-dir":
			cfg.Output.Dir = *outputDir
		case "no-report":
			cfg.Output.Disabled = *noReport
		case "debug":
			cfg.Debug = *debug
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := log.Init(cfg.Debug); err != nil {
		return err
	}
	defer log.Sync()

	runID := uuid.NewString()
	log.Infow("starting analysis", "run_id", runID, "input", input)

	opts := cfg.SourceOptions()
	opts.Logger = log.GetZapLogger()

	rec, err := source.Load(input, opts)
	if err != nil {
		log.Errorw("failed to load recording", "run_id", runID, "error", err)
		return err
	}

	metrics, err := breath.Analyze(rec.Time, rec.Flow,
		breath.WithStrict(cfg.Detector.Strict),
		breath.WithLogger(log.GetZapLogger()))
	if err != nil {
		log.Errorw("analysis failed", "run_id", runID, "error", err)
		return err
	}
	metrics.RunID = runID

	indices, err := json.Marshal(metrics.BreathIndices)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, string(indices))

	if cfg.Output.Disabled {
		log.Infow("finished analysis", "run_id", runID, "breaths", metrics.Breaths)
		return nil
	}

	enc := cfg.ReportEncoding()
	out := report.OutputPath(input, cfg.Output.Dir, enc)
	if err := report.WriteFile(out, metrics, enc); err != nil {
		log.Errorf("Failed to write report %s: %v", out, err)
		return err
	}

	log.Infow("finished analysis", "run_id", runID, "breaths", metrics.Breaths, "report", out)
	return nil
}
