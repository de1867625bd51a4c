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

package csr

import (
	"fmt"
	"os"

	"github.com/graphee-io/graphee/internal/filefmt"
)

// Save writes c to path using the tile file layout from spec §6:
// type tag "SparseBMatrixCSR", format, m, nnz, then the ia and ja
// payload sections (no values array: this is the boolean variant).
func (c *CSR) Save(path string, format filefmt.Format) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return writeCSRHeader(f, boolTypeName, format, c.M, c.NNZ, c.IA, c.JA)
}

// Load reads a tile file written by Save, replacing c's contents.
// It refuses (FormatError) a file whose type tag isn't
// "SparseBMatrixCSR".
func (c *CSR) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	m, nnz, ia, ja, _, err := readCSRHeader(f, path, boolTypeName)
	if err != nil {
		return err
	}
	c.M, c.N = m, m
	c.NNZ = nnz
	c.IA = ia
	c.JA = ja
	c.filling = false
	return nil
}

func writeCSRHeader(f *os.File, typeName string, format filefmt.Format, m, nnz uint64, ia, ja []uint64) error {
	if err := filefmt.WriteTypeName(f, typeName); err != nil {
		return err
	}
	if err := filefmt.WriteUint32(f, uint32(format)); err != nil {
		return err
	}
	if err := filefmt.WriteUint64(f, m); err != nil {
		return err
	}
	if err := filefmt.WriteUint64(f, nnz); err != nil {
		return err
	}
	iaRaw := filefmt.EncodeUint64Slice(ia, make([]byte, 0, len(ia)*8))
	if err := filefmt.WritePayload(f, iaRaw, format); err != nil {
		return fmt.Errorf("csr: write ia: %w", err)
	}
	jaRaw := filefmt.EncodeUint64Slice(ja, make([]byte, 0, len(ja)*8))
	if err := filefmt.WritePayload(f, jaRaw, format); err != nil {
		return fmt.Errorf("csr: write ja: %w", err)
	}
	return nil
}

func readCSRHeader(f *os.File, path, wantType string) (m, nnz uint64, ia, ja []uint64, format filefmt.Format, err error) {
	typeName, err := filefmt.ReadTypeName(f)
	if err != nil {
		return 0, 0, nil, nil, 0, err
	}
	if typeName != wantType {
		return 0, 0, nil, nil, 0, &filefmt.TypeMismatchError{Path: path, Want: wantType, Got: typeName}
	}
	formatRaw, err := filefmt.ReadUint32(f)
	if err != nil {
		return 0, 0, nil, nil, 0, err
	}
	format = filefmt.Format(formatRaw)

	m, err = filefmt.ReadUint64(f)
	if err != nil {
		return 0, 0, nil, nil, format, err
	}
	nnz, err = filefmt.ReadUint64(f)
	if err != nil {
		return 0, 0, nil, nil, format, err
	}
	iaRaw, err := filefmt.ReadPayload(f, int(m+1)*8, format)
	if err != nil {
		return 0, 0, nil, nil, format, fmt.Errorf("csr: read ia: %w", err)
	}
	ia, err = filefmt.DecodeUint64Slice(iaRaw, m+1)
	if err != nil {
		return 0, 0, nil, nil, format, err
	}
	jaRaw, err := filefmt.ReadPayload(f, int(nnz)*8, format)
	if err != nil {
		return 0, 0, nil, nil, format, fmt.Errorf("csr: read ja: %w", err)
	}
	ja, err = filefmt.DecodeUint64Slice(jaRaw, nnz)
	if err != nil {
		return 0, 0, nil, nil, format, err
	}
	return m, nnz, ia, ja, format, nil
}
