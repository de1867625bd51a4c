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

package codec

import (
	"bytes"
	"math/rand"
	"testing"
)

func roundTrip(t *testing.T, in []byte) {
	t.Helper()
	dst := make([]byte, 0, MaxCompressedChunkLen(len(in))+16)
	compressed, err := Compress(in, dst)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	out, err := Decompress(compressed, make([]byte, 0, len(in)))
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d bytes", len(out), len(in))
	}
}

func TestRoundTripEmpty(t *testing.T) {
	roundTrip(t, nil)
}

func TestRoundTripSmall(t *testing.T) {
	roundTrip(t, []byte("the quick brown fox jumps over the lazy dog"))
}

func TestRoundTripRandom(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	buf := make([]byte, 1<<20)
	r.Read(buf)
	roundTrip(t, buf)
}

func TestChunkBounds(t *testing.T) {
	cases := []struct {
		i, total, wantStart, wantEnd int
	}{
		{0, 0, 0, 0},
		{0, 100, 0, 100},
	}
	for _, c := range cases {
		start, end := chunkBounds(c.i, c.total)
		if start != c.wantStart || end != c.wantEnd {
			t.Errorf("chunkBounds(%d, %d) = (%d, %d), want (%d, %d)", c.i, c.total, start, end, c.wantStart, c.wantEnd)
		}
	}
	if numChunks(0) != 0 {
		t.Errorf("numChunks(0) = %d, want 0", numChunks(0))
	}
	if numChunks(1) != 1 {
		t.Errorf("numChunks(1) = %d, want 1", numChunks(1))
	}
}

func TestDecompressTruncatedHeader(t *testing.T) {
	_, err := Decompress([]byte{1, 2, 3}, nil)
	if err == nil {
		t.Fatal("expected error for truncated header")
	}
}

func TestDecompressTruncatedChunkLength(t *testing.T) {
	hdr := []byte{1, 0, 0, 0, 1, 2} // chunk_count=1, then only 2 bytes of an 8-byte length field
	_, err := Decompress(hdr, nil)
	if err == nil {
		t.Fatal("expected error for truncated chunk length header")
	}
}

func TestDecompressChunkOverrunsInput(t *testing.T) {
	hdr := make([]byte, 4+8)
	hdr[0] = 1 // chunk_count = 1
	hdr[4] = 255
	hdr[5] = 255
	hdr[6] = 255
	hdr[7] = 255 // declares ~4 billion bytes, nothing follows
	_, err := Decompress(hdr, nil)
	if err == nil {
		t.Fatal("expected error when declared chunk length overruns input")
	}
}

func TestCompressPreflightTooSmall(t *testing.T) {
	in := make([]byte, 1024)
	dst := make([]byte, 0, 4) // far too small for even the header
	_, err := Compress(in, dst)
	if err == nil {
		t.Fatal("expected preflight error for undersized destination")
	}
}

