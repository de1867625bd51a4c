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

// Package filefmt implements the bit-exact length-prefixed header and
// payload framing shared by tile files and vector slice files (spec
// §6): a type-name tag (so Load refuses a mismatched file), a format
// selector (BIN or SNAPPY-CHUNKED), and one or more length-prefixed
// payload sections.
package filefmt

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/graphee-io/graphee/codec"
)

// Format selects how a payload section is encoded on disk.
type Format int32

const (
	BIN Format = iota
	SnappyChunked
)

// TypeMismatchError is a FormatError (spec §7): the on-disk
// type_name tag doesn't match what Load expected.
type TypeMismatchError struct {
	Path string
	Want string
	Got  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("filefmt: %s: expected type %q, found %q", e.Path, e.Want, e.Got)
}

// WriteTypeName writes the u64-length-prefixed type name tag.
func WriteTypeName(w io.Writer, name string) error {
	var lbuf [8]byte
	binary.LittleEndian.PutUint64(lbuf[:], uint64(len(name)))
	if _, err := w.Write(lbuf[:]); err != nil {
		return err
	}
	_, err := io.WriteString(w, name)
	return err
}

// ReadTypeName reads back a type name tag written by WriteTypeName.
func ReadTypeName(r io.Reader) (string, error) {
	var lbuf [8]byte
	if _, err := io.ReadFull(r, lbuf[:]); err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint64(lbuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteUint32 and ReadUint32 frame the i32 file_format field.
func WriteUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// WriteUint64 and ReadUint64 frame the u64 m/nnz fields.
func WriteUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func ReadUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// WritePayload writes raw as a payload(X) section: for BIN, the raw
// bytes verbatim; for SNAPPY-CHUNKED, a u64 compressed length
// followed by the codec's chunked output (spec §6).
func WritePayload(w io.Writer, raw []byte, format Format) error {
	switch format {
	case BIN:
		_, err := w.Write(raw)
		return err
	case SnappyChunked:
		dst := make([]byte, 0, codec.MaxCompressedChunkLen(len(raw))+16)
		compressed, err := codec.Compress(raw, dst)
		if err != nil {
			return fmt.Errorf("filefmt: compress payload: %w", err)
		}
		if err := WriteUint64(w, uint64(len(compressed))); err != nil {
			return err
		}
		_, err = w.Write(compressed)
		return err
	default:
		return fmt.Errorf("filefmt: unknown format %d", format)
	}
}

// ReadPayload reads back a payload(X) section known to decode to
// exactly rawLen bytes.
func ReadPayload(r io.Reader, rawLen int, format Format) ([]byte, error) {
	switch format {
	case BIN:
		buf := make([]byte, rawLen)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		return buf, nil
	case SnappyChunked:
		clen, err := ReadUint64(r)
		if err != nil {
			return nil, err
		}
		compressed := make([]byte, clen)
		if _, err := io.ReadFull(r, compressed); err != nil {
			return nil, err
		}
		dst := make([]byte, 0, rawLen)
		decoded, err := codec.Decompress(compressed, dst)
		if err != nil {
			return nil, fmt.Errorf("filefmt: decompress payload: %w", err)
		}
		if len(decoded) != rawLen {
			return nil, fmt.Errorf("filefmt: decompressed payload is %d bytes, want %d", len(decoded), rawLen)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("filefmt: unknown format %d", format)
	}
}

// EncodeUint64Slice appends the little-endian bytes of vals to dst.
func EncodeUint64Slice(vals []uint64, dst []byte) []byte {
	var buf [8]byte
	for _, v := range vals {
		binary.LittleEndian.PutUint64(buf[:], v)
		dst = append(dst, buf[:]...)
	}
	return dst
}

// DecodeUint64Slice reads n little-endian uint64 values from src.
func DecodeUint64Slice(src []byte, n uint64) ([]uint64, error) {
	if uint64(len(src)) < n*8 {
		return nil, fmt.Errorf("filefmt: decode uint64 slice: need %d bytes, have %d", n*8, len(src))
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(src[i*8 : i*8+8])
	}
	return out, nil
}

// EncodeFloat64Slice appends the little-endian bytes of vals to dst.
func EncodeFloat64Slice(vals []float64, dst []byte) []byte {
	var buf [8]byte
	for _, v := range vals {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		dst = append(dst, buf[:]...)
	}
	return dst
}

// DecodeFloat64Slice reads n little-endian float64 values from src.
func DecodeFloat64Slice(src []byte, n uint64) ([]float64, error) {
	if uint64(len(src)) < n*8 {
		return nil, fmt.Errorf("filefmt: decode float64 slice: need %d bytes, have %d", n*8, len(src))
	}
	out := make([]float64, n)
	for i := range out {
		bits := binary.LittleEndian.Uint64(src[i*8 : i*8+8])
		out[i] = math.Float64frombits(bits)
	}
	return out, nil
}
