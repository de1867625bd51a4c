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

// Package codec layers chunking on top of a third-party compression
// library so that byte slices larger than the library's single-call
// input limit can still be compressed and decompressed through one
// buffer-to-buffer call. It never allocates the destination buffer;
// callers own both sides.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/s2"
)

// ChunkMax is the largest input this codec passes to s2.Encode in one
// call.
// s2 (and the snappy format it extends) caps a single block at just
// under 4GiB; this engine only ever compresses tiles and vector
// slices well under that, but the chunked header format exists
// precisely so a caller is never surprised by the cap.
const ChunkMax = 1 << 30 // 1GiB per chunk, comfortably under s2's own limit

// Error reports a codec failure: a truncated header, an inconsistent
// chunk length, an undersized destination buffer, or an error from
// the underlying compressor/decompressor.
type Error struct {
	Op  string
	Msg string
}

func (e *Error) Error() string { return fmt.Sprintf("codec: %s: %s", e.Op, e.Msg) }

// MaxCompressedChunkLen returns the worst-case compressed size of a
// ChunkMax-sized (or smaller) chunk, used by callers to preflight a
// destination buffer before calling Compress.
func MaxCompressedChunkLen(chunkLen int) int {
	return s2.MaxEncodedLen(chunkLen) + 8
}

// Compress splits in into ChunkMax-sized chunks, compresses each one
// with s2, and appends the chunked wire format to dst:
//
//	u32 chunk_count
//	for each chunk:
//	  u64 compressed_len
//	  compressed bytes
//
// It fails if the preflight bound (4 + chunk_count*8 + sum of
// max-compressed-chunk-lens) would exceed cap(dst) - len(dst); no
// partial output survives a failure.
func Compress(in []byte, dst []byte) ([]byte, error) {
	nchunks := numChunks(len(in))

	need := 4
	for i := 0; i < nchunks; i++ {
		start, end := chunkBounds(i, len(in))
		need += 8 + MaxCompressedChunkLen(end-start)
	}
	if need > cap(dst)-len(dst) {
		return nil, &Error{Op: "compress", Msg: fmt.Sprintf("preflight bound %d exceeds available capacity %d", need, cap(dst)-len(dst))}
	}

	out := dst
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(nchunks))
	out = append(out, hdr[:]...)

	for i := 0; i < nchunks; i++ {
		start, end := chunkBounds(i, len(in))
		chunk := in[start:end]
		compressed := s2.Encode(nil, chunk)

		var lenBuf [8]byte
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(compressed)))
		out = append(out, lenBuf[:]...)
		out = append(out, compressed...)
	}
	return out, nil
}

// Decompress reverses Compress: it reads the chunk-count header,
// decompresses each chunk in turn, and appends the decoded bytes to
// dst. It fails if the header is truncated, a chunk's declared
// length runs past the end of in, the decompressed bytes don't fit
// within cap(dst)-len(dst), or s2 rejects a chunk as corrupt.
func Decompress(in []byte, dst []byte) ([]byte, error) {
	if len(in) < 4 {
		return nil, &Error{Op: "decompress", Msg: "truncated header"}
	}
	nchunks := int(binary.LittleEndian.Uint32(in[:4]))
	in = in[4:]

	out := dst
	for i := 0; i < nchunks; i++ {
		if len(in) < 8 {
			return nil, &Error{Op: "decompress", Msg: fmt.Sprintf("truncated chunk length header at chunk %d", i)}
		}
		clen := binary.LittleEndian.Uint64(in[:8])
		in = in[8:]
		if uint64(len(in)) < clen {
			return nil, &Error{Op: "decompress", Msg: fmt.Sprintf("chunk %d declares %d bytes but only %d remain", i, clen, len(in))}
		}
		chunk := in[:clen]
		in = in[clen:]

		dlen, err := s2.DecodedLen(chunk)
		if err != nil {
			return nil, &Error{Op: "decompress", Msg: fmt.Sprintf("chunk %d: %s", i, err)}
		}
		if dlen > cap(out)-len(out) {
			return nil, &Error{Op: "decompress", Msg: fmt.Sprintf("chunk %d expansion to %d bytes overflows destination", i, dlen)}
		}

		start := len(out)
		out = out[:start+dlen]
		decoded, err := s2.Decode(out[start:start+dlen], chunk)
		if err != nil {
			return nil, &Error{Op: "decompress", Msg: fmt.Sprintf("chunk %d: %s", i, err)}
		}
		if len(decoded) != dlen {
			return nil, &Error{Op: "decompress", Msg: fmt.Sprintf("chunk %d: expected %d bytes, decoder produced %d", i, dlen, len(decoded))}
		}
	}
	return out, nil
}

func numChunks(n int) int {
	if n == 0 {
		return 0
	}
	return (n + ChunkMax - 1) / ChunkMax
}

func chunkBounds(i, total int) (start, end int) {
	start = i * ChunkMax
	end = start + ChunkMax
	if end > total {
		end = total
	}
	return start, end
}
