// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"golang.org/x/xerrors"
)

// ByteRangeReader reads exact byte ranges from a recording, wherever it
// lives. ReadRange returns exactly length bytes; a short read is an
// error.
type ByteRangeReader interface {
	ReadRange(offset, length uint64) ([]byte, error)
}

// Sizer is implemented by readers that know the total size of the
// recording; the index uses it to validate itself against the target.
type Sizer interface {
	Size() (uint64, error)
}

// FileRangeReader reads ranges from a local file.
type FileRangeReader struct {
	f *os.File
}

// OpenFile opens a local file for range reads.
func OpenFile(path string) (*FileRangeReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("index: could not open %q: %w", path, err)
	}
	return &FileRangeReader{f: f}, nil
}

// ReadRange implements ByteRangeReader.
func (r *FileRangeReader) ReadRange(offset, length uint64) ([]byte, error) {
	buf := make([]byte, length)
	_, err := r.f.ReadAt(buf, int64(offset))
	if err != nil {
		return nil, xerrors.Errorf("index: could not read %d bytes at %#x: %w", length, offset, err)
	}
	return buf, nil
}

// Size implements Sizer.
func (r *FileRangeReader) Size() (uint64, error) {
	fi, err := r.f.Stat()
	if err != nil {
		return 0, xerrors.Errorf("index: could not stat range reader file: %w", err)
	}
	return uint64(fi.Size()), nil
}

// Close closes the underlying file.
func (r *FileRangeReader) Close() error {
	return r.f.Close()
}

// HTTPRangeReader reads ranges from a remote recording through HTTP
// Range requests.
type HTTPRangeReader struct {
	Client *http.Client
	URL    string
}

// NewHTTPRangeReader returns a reader issuing Range requests against url
// with the default HTTP client.
func NewHTTPRangeReader(url string) *HTTPRangeReader {
	return &HTTPRangeReader{Client: http.DefaultClient, URL: url}
}

// ReadRange implements ByteRangeReader.
func (r *HTTPRangeReader) ReadRange(offset, length uint64) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	req, err := http.NewRequest(http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, xerrors.Errorf("index: could not build range request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, xerrors.Errorf("index: could not fetch range [%d,+%d): %w", offset, length, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		// the server ignored the Range header: the body starts at byte 0.
		if _, err := io.CopyN(io.Discard, resp.Body, int64(offset)); err != nil {
			return nil, xerrors.Errorf("index: short range read [%d,+%d): %w", offset, length, err)
		}
	default:
		return nil, xerrors.Errorf("index: range request failed: %s", resp.Status)
	}

	buf := make([]byte, length)
	_, err = io.ReadFull(resp.Body, buf)
	if err != nil {
		return nil, xerrors.Errorf("index: short range read [%d,+%d): %w", offset, length, err)
	}
	return buf, nil
}

var (
	_ ByteRangeReader = (*FileRangeReader)(nil)
	_ ByteRangeReader = (*HTTPRangeReader)(nil)
	_ Sizer           = (*FileRangeReader)(nil)
)
