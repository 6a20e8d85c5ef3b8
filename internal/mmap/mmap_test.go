// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mmap // import "github.com/go-lpc/mdf/internal/mmap"

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestHandle(t *testing.T) {
	t.Run("nil-handle", func(t *testing.T) {
		var h *Handle

		_, err := h.ReadAt(nil, 0)
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		_, err = h.WriteAt(nil, 0)
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid write-at error: %+v", err)
		}

		err = h.Close()
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid close error: %+v", err)
		}
	})
	t.Run("nil-data", func(t *testing.T) {
		var h Handle

		_, err := h.ReadAt(nil, 0)
		if !errors.Is(err, errClosed) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		_, err = h.WriteAt(nil, 0)
		if !errors.Is(err, errClosed) {
			t.Fatalf("invalid write-at error: %+v", err)
		}

		err = h.Close()
		if err != nil {
			t.Fatalf("error closing nil-data handle: %+v", err)
		}
	})
}

func TestHandleFrom(t *testing.T) {
	h := HandleFrom([]byte{0, 1, 2, 3})

	if got, want := h.Len(), 4; got != want {
		t.Fatalf("invalid len: got=%d, want=%d", got, want)
	}

	if got, want := h.At(1), byte(1); got != want {
		t.Fatalf("invalid value: got=%d, want=%d", got, want)
	}

	_, err := h.WriteAt(nil, 0)
	if got, want := err.Error(), "mmap: read-only mapping"; got != want {
		t.Fatalf("invalid error: %+v", err)
	}

	_, err = h.ReadAt(nil, -1)
	if got, want := err.Error(), "mmap: invalid ReadAt offset -1"; got != want {
		t.Fatalf("invalid error: %+v", err)
	}
}

func TestCreateOpen(t *testing.T) {
	dir, err := os.MkdirTemp("", "mdf-mmap-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(dir)
	fname := filepath.Join(dir, "data.bin")

	w, err := Create(fname, 16)
	if err != nil {
		t.Fatalf("could not create mapping: %+v", err)
	}
	_, err = w.WriteAt([]byte{1, 2, 3, 4}, 4)
	if err != nil {
		t.Fatalf("could not write: %+v", err)
	}
	if err := w.Sync(); err != nil {
		t.Fatalf("could not sync: %+v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("could not close: %+v", err)
	}

	r, err := Open(fname)
	if err != nil {
		t.Fatalf("could not open mapping: %+v", err)
	}
	defer r.Close()

	if got, want := r.Len(), 16; got != want {
		t.Fatalf("invalid len: got=%d, want=%d", got, want)
	}
	if got, want := r.Bytes()[4:8], []byte{1, 2, 3, 4}; !bytes.Equal(got, want) {
		t.Fatalf("invalid content: got=%v, want=%v", got, want)
	}
}
