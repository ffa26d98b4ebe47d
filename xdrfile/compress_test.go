/*
 * compress_test.go, part of goxdr
 *
 * Copyright 2023 Raul Mera Adasme <rmera_changeforat_chem-dot-helsinki-dot-fi>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 */

package xdrfile

import (
	"fmt"
	"math"
	"path/filepath"
	"testing"
)

//makeCoords builds a deterministic fake conformation, spread enough to
//exercise both the small-int and the large-int encoding paths.
func makeCoords(n int) [][3]float32 {
	coords := make([][3]float32, n)
	for i := range coords {
		f := float64(i)
		coords[i] = [3]float32{
			float32(math.Sin(f/3.0) * 5.0),
			float32(math.Cos(f/7.0) * 5.0),
			float32(f * 0.01),
		}
	}
	return coords
}

func roundtrip(Te *testing.T, name string, coords [][3]float32, prec float32) {
	w, err := OpenWrite(name)
	if err != nil {
		Te.Fatal(err)
	}
	if err := w.CompressCoords(coords, prec); err != nil {
		Te.Fatal(err)
	}
	if err := w.Close(); err != nil {
		Te.Fatal(err)
	}
	r, err := OpenRead(name)
	if err != nil {
		Te.Fatal(err)
	}
	defer r.Close()
	got := make([][3]float32, len(coords))
	gotprec, err := r.DecompressCoords(got)
	if err != nil {
		Te.Fatal(err)
	}
	if len(coords) > 9 && gotprec != prec {
		Te.Errorf("precision not recovered: wanted %v, got %v", prec, gotprec)
	}
	tol := float64(1.0 / prec)
	for i := range coords {
		for j := 0; j < 3; j++ {
			d := math.Abs(float64(coords[i][j] - got[i][j]))
			if d > tol {
				Te.Errorf("atom %d axis %d off by %v (tolerance %v)", i, j, d, tol)
			}
		}
	}
}

func TestCompressRoundtrip(Te *testing.T) {
	coords := makeCoords(100)
	roundtrip(Te, filepath.Join(Te.TempDir(), "coords.bin"), coords, 1000.0)
	fmt.Println("compressed roundtrip done,", len(coords), "atoms")
}

//Nine atoms or fewer skip the compressor and go as raw floats.
func TestCompressSmallSystem(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "small.bin")
	coords := makeCoords(5)
	w, err := OpenWrite(name)
	if err != nil {
		Te.Fatal(err)
	}
	if err := w.CompressCoords(coords, 1000.0); err != nil {
		Te.Fatal(err)
	}
	w.Close()
	r, err := OpenRead(name)
	if err != nil {
		Te.Fatal(err)
	}
	defer r.Close()
	got := make([][3]float32, 5)
	prec, err := r.DecompressCoords(got)
	if err != nil {
		Te.Fatal(err)
	}
	if prec != 0 {
		Te.Error("small systems carry no precision, got", prec)
	}
	for i := range coords {
		if coords[i] != got[i] {
			Te.Errorf("atom %d: wanted %v, got %v", i, coords[i], got[i])
		}
	}
}

//Higher precision must shrink the tolerance accordingly.
func TestCompressPrecisions(Te *testing.T) {
	dir := Te.TempDir()
	coords := makeCoords(40)
	for _, prec := range []float32{10, 100, 1000, 10000} {
		roundtrip(Te, filepath.Join(dir, fmt.Sprintf("p%v.bin", prec)), coords, prec)
	}
}

//The compressed block must survive the gzip and zstd containers too.
func TestCompressContainers(Te *testing.T) {
	dir := Te.TempDir()
	coords := makeCoords(60)
	roundtrip(Te, filepath.Join(dir, "coords.bin.gz"), coords, 1000.0)
	roundtrip(Te, filepath.Join(dir, "coords.bin.zst"), coords, 1000.0)
}

//An atom count in the stream that disagrees with the destination
//slice must be refused before anything is decoded.
func TestDecompressWrongCount(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "coords.bin")
	coords := makeCoords(30)
	w, err := OpenWrite(name)
	if err != nil {
		Te.Fatal(err)
	}
	if err := w.CompressCoords(coords, 1000.0); err != nil {
		Te.Fatal(err)
	}
	w.Close()
	r, err := OpenRead(name)
	if err != nil {
		Te.Fatal(err)
	}
	defer r.Close()
	got := make([][3]float32, 29)
	if _, err := r.DecompressCoords(got); err == nil {
		Te.Error("mismatched atom count went through")
	}
}

func TestXDRPrimitives(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "prims.bin")
	w, err := OpenWrite(name)
	if err != nil {
		Te.Fatal(err)
	}
	if err := w.WriteInt(-42); err != nil {
		Te.Fatal(err)
	}
	if err := w.WriteFloat(3.25); err != nil {
		Te.Fatal(err)
	}
	if err := w.WriteDouble(-1.5e100); err != nil {
		Te.Fatal(err)
	}
	if err := w.WriteString("GMX_trn_file"); err != nil {
		Te.Fatal(err)
	}
	if err := w.WriteOpaque([]byte{1, 2, 3}); err != nil { //needs a pad byte
		Te.Fatal(err)
	}
	if w.Tell() != 4+4+8+4+12+4 {
		Te.Error("write position off:", w.Tell())
	}
	w.Close()
	r, err := OpenRead(name)
	if err != nil {
		Te.Fatal(err)
	}
	defer r.Close()
	if i, err := r.ReadInt(); err != nil || i != -42 {
		Te.Error("int roundtrip:", i, err)
	}
	if f, err := r.ReadFloat(); err != nil || f != 3.25 {
		Te.Error("float roundtrip:", f, err)
	}
	if d, err := r.ReadDouble(); err != nil || d != -1.5e100 {
		Te.Error("double roundtrip:", d, err)
	}
	if s, err := r.ReadString(64); err != nil || s != "GMX_trn_file" {
		Te.Error("string roundtrip:", s, err)
	}
	b := make([]byte, 3)
	if err := r.ReadOpaque(b); err != nil || b[2] != 3 {
		Te.Error("opaque roundtrip:", b, err)
	}
	if r.Tell() != 4+4+8+4+12+4 {
		Te.Error("read position off:", r.Tell())
	}
}
