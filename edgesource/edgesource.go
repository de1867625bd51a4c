// Copyright (C) 2024 Graphee Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package edgesource streams decompressed edge-list text out of a
// list of gzip-compressed files, one chunk at a time, with the next
// chunk's decompression running in the background while the caller
// parses the chunk just returned (spec C2). Parsing the text itself
// -- splitting "dst src" tokens and filtering self-loops -- is the
// caller's job; this package only ever deals in bytes.
package edgesource

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// Source reads a sequence of gzip-compressed files as one continuous
// decompressed byte stream, chunked to chunkSize. Only one file is
// open at a time.
type Source struct {
	files     []string
	chunkSize int

	// mu guards the active file handle: which file is open, and the
	// gzip.Reader layered over it. One background goroutine at a time
	// reads through it on behalf of prefetch.
	mu  sync.Mutex
	idx int
	f   *os.File
	gz  *gzip.Reader

	// pending is the single-slot handoff for the chunk currently
	// being decompressed in the background; it stands in for the
	// "ready flag" in the spec's prose (spec §4.2 concurrency note).
	pending chan fetchResult
}

type fetchResult struct {
	buf []byte
	n   int
	err error
}

// New opens the first file in files (if any) and starts prefetching
// its first chunk. chunkSize is the size of the internal double
// buffer (the B in the spec); Read never returns more than
// chunkSize bytes per call.
func New(files []string, chunkSize int) (*Source, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("edgesource: chunk size must be positive, got %d", chunkSize)
	}
	s := &Source{
		files:     files,
		chunkSize: chunkSize,
		pending:   make(chan fetchResult, 1),
	}
	if len(files) > 0 {
		if err := s.openFileLocked(); err != nil {
			return nil, err
		}
	}
	s.prefetch()
	return s, nil
}

// Read copies the next prefetched chunk (up to chunkSize bytes of
// decompressed text) into buf and reports whether any bytes were
// returned. buf must be at least chunkSize bytes long: n is the
// chunk's length, and a shorter buf receives only its first len(buf)
// bytes. Once all files are
// exhausted, it returns (0, false, nil) on every subsequent call.
func (s *Source) Read(buf []byte) (n int, hasMore bool, err error) {
	res, ok := <-s.pending
	if !ok {
		return 0, false, nil
	}
	if res.err != nil {
		close(s.pending)
		return 0, false, res.err
	}
	if res.n == 0 {
		close(s.pending)
		return 0, false, nil
	}
	copy(buf, res.buf[:res.n])
	n = res.n
	if res.n < len(res.buf) {
		// the chunk that just completed drained the last file: there is
		// nothing left to prefetch.
		close(s.pending)
	} else {
		s.prefetch()
	}
	return n, true, nil
}

// Close releases the currently open file, if any.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCurrentLocked()
}

// prefetch launches the background decompression of the next chunk
// (spec: "a background decompression fills the next buffer" while
// the ingest thread processes the buffer already returned by Read).
func (s *Source) prefetch() {
	go func() {
		s.mu.Lock()
		buf := make([]byte, s.chunkSize)
		n, err := s.fillLocked(buf)
		s.mu.Unlock()
		s.pending <- fetchResult{buf: buf, n: n, err: err}
	}()
}

// fillLocked must be called with s.mu held. It fills buf from the
// active file, transparently advancing to the next file on EOF, and
// returns however many bytes it managed to collect (possibly fewer
// than len(buf) if the file list ran out).
func (s *Source) fillLocked(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		if s.gz == nil {
			return total, nil
		}
		n, err := s.gz.Read(buf[total:])
		total += n
		if err == nil {
			continue
		}
		if err != io.EOF {
			return total, err
		}
		if err := s.closeCurrentLocked(); err != nil {
			return total, err
		}
		if s.idx >= len(s.files) {
			return total, nil
		}
		if err := s.openFileLocked(); err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *Source) openFileLocked() error {
	f, err := os.Open(s.files[s.idx])
	if err != nil {
		return err
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return err
	}
	s.f, s.gz = f, gz
	s.idx++
	return nil
}

func (s *Source) closeCurrentLocked() error {
	if s.gz == nil {
		return nil
	}
	gzErr := s.gz.Close()
	fErr := s.f.Close()
	s.gz, s.f = nil, nil
	if gzErr != nil {
		return gzErr
	}
	return fErr
}
