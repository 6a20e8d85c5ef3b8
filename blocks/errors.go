// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocks

import (
	"errors"
	"fmt"
	"runtime"
)

var (
	errBadLength = errors.New("blocks: bad block length")
)

// ShortBufferError reports a buffer smaller than a block or field needs,
// with the source location that noticed it.
type ShortBufferError struct {
	Actual   int
	Expected int
	File     string
	Line     int
}

func (e *ShortBufferError) Error() string {
	return fmt.Sprintf("blocks: buffer too small at %s:%d: need at least %d bytes, got %d",
		e.File, e.Line, e.Expected, e.Actual,
	)
}

// shortBuf builds a ShortBufferError pointing at its caller.
func shortBuf(actual, expected int) error {
	_, file, line, _ := runtime.Caller(1)
	return &ShortBufferError{Actual: actual, Expected: expected, File: file, Line: line}
}

// MagicError reports an unexpected block magic.
type MagicError struct {
	Got  string
	Want string
}

func (e *MagicError) Error() string {
	return fmt.Sprintf("blocks: invalid block identifier: expected %q, got %q", e.Want, e.Got)
}

// IdentificationError reports an invalid file identification preamble.
type IdentificationError struct {
	Got string
}

func (e *IdentificationError) Error() string {
	return fmt.Sprintf("blocks: invalid file identifier: expected %q, found %q", idFileMagic, e.Got)
}

// VersionError reports a file version below the supported minimum.
type VersionError struct {
	Version uint16
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("blocks: file version too low: expected >= %d, found %d", MinVersion, e.Version)
}

// VersionStringError reports an unparseable version string.
type VersionStringError struct {
	Str string
}

func (e *VersionStringError) Error() string {
	return fmt.Sprintf("blocks: invalid version string %q", e.Str)
}

// LinkError reports a dangling or inconsistent block link.
type LinkError struct {
	Msg string
}

func (e *LinkError) Error() string {
	return "blocks: block linking error: " + e.Msg
}

// SerializationError reports a block that cannot be serialized.
type SerializationError struct {
	Msg string
}

func (e *SerializationError) Error() string {
	return "blocks: block serialization error: " + e.Msg
}

// ChainDepthError reports a conversion chain deeper than the resolution
// bound.
type ChainDepthError struct {
	Max int
}

func (e *ChainDepthError) Error() string {
	return fmt.Sprintf("blocks: conversion chain too deep: maximum depth of %d exceeded", e.Max)
}

// ChainCycleError reports a cycle in a conversion chain.
type ChainCycleError struct {
	Addr uint64
}

func (e *ChainCycleError) Error() string {
	return fmt.Sprintf("blocks: conversion chain cycle detected at block address %#x", e.Addr)
}
