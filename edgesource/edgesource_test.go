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

package edgesource

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func writeGzipFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	gw := gzip.NewWriter(f)
	if _, err := gw.Write([]byte(content)); err != nil {
		t.Fatalf("write gzip: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("close gzip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

func drainAll(t *testing.T, s *Source, chunkSize int) []byte {
	t.Helper()
	var out bytes.Buffer
	buf := make([]byte, chunkSize)
	for {
		n, hasMore, err := s.Read(buf)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		out.Write(buf[:n])
		if !hasMore {
			break
		}
	}
	return out.Bytes()
}

func TestSingleFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := "0 1\n0 2\n1 2\n"
	path := writeGzipFile(t, dir, "a.gz", want)

	s, err := New([]string{path}, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	got := drainAll(t, s, 4)
	if string(got) != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestMultiFileTransparentAdvance(t *testing.T) {
	dir := t.TempDir()
	want1 := "0 1\n0 2\n"
	want2 := "1 2\n2 3\n"
	p1 := writeGzipFile(t, dir, "a.gz", want1)
	p2 := writeGzipFile(t, dir, "b.gz", want2)

	s, err := New([]string{p1, p2}, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	got := drainAll(t, s, 3)
	if string(got) != want1+want2 {
		t.Fatalf("got %q, want %q", got, want1+want2)
	}
}

func TestReadAfterExhaustionReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	path := writeGzipFile(t, dir, "a.gz", "0 1\n")

	s, err := New([]string{path}, 64)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	buf := make([]byte, 64)
	_, hasMore, err := s.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !hasMore {
		t.Fatal("expected hasMore=true on first read of a non-empty file")
	}
	n, hasMore, err := s.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if hasMore || n != 0 {
		t.Fatalf("expected (0, false) after exhaustion, got (%d, %v)", n, hasMore)
	}
	// idempotent: repeated reads after exhaustion keep returning false.
	n, hasMore, err = s.Read(buf)
	if err != nil || hasMore || n != 0 {
		t.Fatalf("expected (0, false, nil) on a further read, got (%d, %v, %v)", n, hasMore, err)
	}
}

func TestEmptyFileList(t *testing.T) {
	s, err := New(nil, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	buf := make([]byte, 16)
	n, hasMore, err := s.Read(buf)
	if err != nil || hasMore || n != 0 {
		t.Fatalf("expected immediate (0, false, nil) for an empty file list, got (%d, %v, %v)", n, hasMore, err)
	}
}

func TestNonPositiveChunkSizeRejected(t *testing.T) {
	if _, err := New(nil, 0); err == nil {
		t.Fatal("expected an error for a zero chunk size")
	}
}
