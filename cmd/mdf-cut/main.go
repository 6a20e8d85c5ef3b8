// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// mdf-cut extracts a time segment of an MDF 4.1 file into a new file.
//
// Usage: mdf-cut -start T0 -end T1 -o out.mf4 in.mf4
//
// The segment bounds are expressed in the unit of the master channel.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"

	"github.com/go-lpc/mdf"
)

func main() {
	log.SetPrefix("mdf-cut: ")
	log.SetFlags(0)

	var (
		start = flag.Float64("start", 0, "segment start, in master channel units")
		end   = flag.Float64("end", math.MaxFloat64, "segment end, in master channel units")
		out   = flag.String("o", "out.mf4", "path to the output file")
	)

	flag.Usage = func() {
		fmt.Printf(`mdf-cut extracts a time segment of an MDF 4.1 file.

Usage: mdf-cut [OPTIONS] FILE.mf4

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		log.Fatalf("missing input file")
	}

	err := mdf.CutByTime(flag.Arg(0), *out, *start, *end)
	if err != nil {
		log.Fatalf("could not cut %q: %+v", flag.Arg(0), err)
	}
	log.Printf("wrote %q", *out)
}
