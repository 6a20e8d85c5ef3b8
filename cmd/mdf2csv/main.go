// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// mdf2csv exports the channels of an MDF 4.1 channel group to a CSV
// table.
//
// Usage: mdf2csv [OPTIONS] FILE.mf4
//
// Example:
//
//	$> mdf2csv -g 0 -o meas.csv ./meas.mf4
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"go-hep.org/x/hep/csvutil"

	"github.com/go-lpc/mdf"
	"github.com/go-lpc/mdf/blocks"
)

func main() {
	log.SetPrefix("mdf2csv: ")
	log.SetFlags(0)

	var (
		group = flag.Int("g", 0, "channel group to export")
		out   = flag.String("o", "out.csv", "path to the output CSV file")
	)

	flag.Usage = func() {
		fmt.Printf(`mdf2csv exports the channels of an MDF 4.1 channel group to CSV.

Usage: mdf2csv [OPTIONS] FILE.mf4

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		log.Fatalf("missing input file")
	}

	err := process(flag.Arg(0), *out, *group)
	if err != nil {
		log.Fatalf("could not convert %q: %+v", flag.Arg(0), err)
	}
}

func process(fname, oname string, group int) error {
	f, err := mdf.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	cgs := f.ChannelGroups()
	if group < 0 || group >= len(cgs) {
		return fmt.Errorf("invalid channel group %d (file has %d)", group, len(cgs))
	}
	cg := cgs[group]

	var (
		names []string
		cols  [][]blocks.Value
	)
	for _, ch := range cg.Channels {
		name, err := ch.Name()
		if err != nil {
			return fmt.Errorf("could not read channel name: %w", err)
		}
		vals, err := ch.Values()
		if err != nil {
			return fmt.Errorf("could not decode channel %q: %w", name, err)
		}
		names = append(names, name)
		cols = append(cols, vals)
	}

	tbl, err := csvutil.Create(oname)
	if err != nil {
		return fmt.Errorf("could not create %q: %w", oname, err)
	}
	defer tbl.Close()
	tbl.Writer.Comma = ';'

	err = tbl.WriteHeader(fmt.Sprintf("# %s\n", strings.Join(names, ";")))
	if err != nil {
		return fmt.Errorf("could not write CSV header: %w", err)
	}

	rows := 0
	for _, col := range cols {
		if len(col) > rows {
			rows = len(col)
		}
	}
	for i := 0; i < rows; i++ {
		row := make([]interface{}, len(cols))
		for j, col := range cols {
			row[j] = ""
			if i < len(col) {
				row[j] = cell(col[i])
			}
		}
		err = tbl.WriteRow(row...)
		if err != nil {
			return fmt.Errorf("could not write CSV row %d: %w", i, err)
		}
	}

	err = tbl.Close()
	if err != nil {
		return fmt.Errorf("could not close %q: %w", oname, err)
	}
	return nil
}

// cell renders a decoded value for a CSV field.
func cell(v blocks.Value) interface{} {
	switch v.Kind() {
	case blocks.KindUnsigned:
		return v.Uint()
	case blocks.KindSigned:
		return v.Int()
	case blocks.KindFloat:
		return v.Float()
	case blocks.KindString:
		return v.Str()
	case blocks.KindBytes, blocks.KindMimeSample, blocks.KindMimeStream:
		return fmt.Sprintf("%x", v.Bytes())
	}
	return ""
}
