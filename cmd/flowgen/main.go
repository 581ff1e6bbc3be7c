// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Command flowgen writes a synthetic CPAP flow recording in EDF format, for
// exercising the breath detector without patient data.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/OpenPSG/breath/internal/edf"
	"github.com/OpenPSG/breath/internal/log"
)

// ResMed devices sample flow every 40ms and store one minute per data record.
const (
	sampleRate     = 25
	recordDuration = time.Minute
)

type params struct {
	Duration    time.Duration // Length of the recording
	Rate        float64       // Breaths per minute
	Amplitude   float64       // Peak flow in L/s
	ApneaEvery  int           // Insert an apnea after this many breaths, 0 for none
	ApneaLength time.Duration // Length of each apnea
	Noise       float64       // Standard deviation of additive noise in L/s
	Seed        int64
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "flowgen: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) (err error) {
	var p params

	fs := flag.NewFlagSet("flowgen", flag.ContinueOnError)
	out := fs.String("out", "BRP.edf", "Path of the EDF file to write")
	fs.DurationVar(&p.Duration, "duration", 10*time.Minute, "Length of the recording")
	fs.Float64Var(&p.Rate, "rate", 15, "Breaths per minute")
	fs.Float64Var(&p.Amplitude, "amplitude", 0.5, "Peak flow in L/s")
	fs.IntVar(&p.ApneaEvery, "apnea-every", 0, "Insert an apnea after this many breaths (0 disables apneas)")
	fs.DurationVar(&p.ApneaLength, "apnea-length", 15*time.Second, "Length of each apnea")
	fs.Float64Var(&p.Noise, "noise", 0, "Standard deviation of additive noise in L/s")
	fs.Int64Var(&p.Seed, "seed", 1, "Random seed for the noise")
	debug := fs.Bool("debug", false, "Turn on debugging output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if p.Rate <= 0 || p.Duration <= 0 {
		return fmt.Errorf("rate and duration must be positive")
	}

	if err := log.Init(*debug); err != nil {
		return err
	}
	defer log.Sync()

	flow := synthesize(p)

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("error creating recording: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("error closing recording: %w", cerr)
		}
	}()

	if err := writeEDF(f, flow, p.Amplitude+4*p.Noise); err != nil {
		return err
	}

	log.Infow("wrote synthetic recording", "path", *out, "samples", len(flow))
	fmt.Fprintf(stdout, "wrote %d samples to %s\n", len(flow), *out)
	return nil
}

// synthesize returns a flow signal sampled at sampleRate in which every breath
// is one sine period: positive while inhaling, negative while exhaling.
func synthesize(p params) []float64 {
	rng := rand.New(rand.NewSource(p.Seed))

	n := int(p.Duration.Seconds() * sampleRate)
	flow := make([]float64, n)

	breathSamples := 60 / p.Rate * sampleRate
	apneaSamples := int(p.ApneaLength.Seconds() * sampleRate)

	var breaths int
	var phase float64 // Position within the current breath, in samples
	pause := 0
	for i := range flow {
		if pause > 0 {
			pause--
		} else {
			flow[i] = p.Amplitude * math.Sin(2*math.Pi*phase/breathSamples)
			phase++
			if phase >= breathSamples {
				phase -= breathSamples
				breaths++
				if p.ApneaEvery > 0 && breaths%p.ApneaEvery == 0 {
					pause = apneaSamples
				}
			}
		}

		if p.Noise > 0 {
			flow[i] += rng.NormFloat64() * p.Noise
		}
	}

	return flow
}

func writeEDF(w io.WriteSeeker, flow []float64, limit float64) error {
	perRecord := int(recordDuration.Seconds() * sampleRate)

	ew, err := edf.Create(w, edf.Header{
		PatientID:          "X X X X",
		RecordingID:        "Startdate X X X flowgen",
		StartTime:          time.Now().UTC().Truncate(time.Second),
		DataRecordDuration: recordDuration,
		Signals: []edf.Signal{
			{
				Label:             "Flow.40ms",
				TransducerType:    "Synthetic",
				PhysicalDimension: "L/s",
				PhysicalMin:       -limit,
				PhysicalMax:       limit,
				DigitalMin:        -32768,
				DigitalMax:        32767,
				SamplesPerRecord:  perRecord,
			},
		},
	})
	if err != nil {
		return err
	}

	record := make([]float64, perRecord)
	for off := 0; off < len(flow); off += perRecord {
		// The last record is padded with zero flow.
		clear(record)
		copy(record, flow[off:])
		if err := ew.WriteRecord([][]float64{record}); err != nil {
			return err
		}
	}

	return ew.Close()
}
