/*
 * xtc_test.go, part of goxdr
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

package xtc

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	xdr "github.com/rmera/goxdr"
)

const testAtoms = 50

//testFrame builds frame number k of a small synthetic trajectory.
func testFrame(k int) *xdr.Frame {
	frame := xdr.NewFrame(testAtoms)
	frame.Step = k * 100
	frame.Time = float32(k) * 2.0
	frame.Box = [3][3]float32{{6, 0, 0}, {0, 6, 0}, {0, 0, 6}}
	for i := range frame.Coords {
		f := float64(i + k*testAtoms)
		frame.Coords[i] = [3]float32{
			float32(math.Sin(f/3.0) * 3.0),
			float32(math.Cos(f/5.0) * 3.0),
			float32(f * 0.005),
		}
	}
	return frame
}

func writeTestTraj(Te *testing.T, name string, nframes int) {
	traj, err := NewWriter(name)
	if err != nil {
		Te.Fatal(err)
	}
	for k := 0; k < nframes; k++ {
		if err := traj.WNext(testFrame(k)); err != nil {
			Te.Fatal(err)
		}
	}
	if err := traj.Close(); err != nil {
		Te.Fatal(err)
	}
}

func TestXTCWriteRead(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "test.xtc")
	writeTestTraj(Te, name, 4)
	traj, err := New(name)
	if err != nil {
		Te.Fatal(err)
	}
	defer traj.Close()
	if traj.Len() != testAtoms {
		Te.Fatal("wrong atom count:", traj.Len())
	}
	frame := xdr.NewFrame(traj.Len())
	tol := float64(1.0 / DefaultPrecision)
	i := 0
	for ; ; i++ {
		err := traj.Next(frame)
		if err != nil {
			if xdr.IsLastFrame(err) {
				break
			}
			Te.Fatal(err)
		}
		want := testFrame(i)
		if frame.Step != want.Step || frame.Time != want.Time {
			Te.Error("frame", i, "header mismatch:", frame.Step, frame.Time)
		}
		if frame.Box != want.Box {
			Te.Error("frame", i, "box mismatch")
		}
		for j := range frame.Coords {
			for ax := 0; ax < 3; ax++ {
				d := math.Abs(float64(frame.Coords[j][ax] - want.Coords[j][ax]))
				if d > tol {
					Te.Fatalf("frame %d atom %d axis %d off by %v", i, j, ax, d)
				}
			}
		}
	}
	if i != 4 {
		Te.Error("frames read:", i)
	}
	fmt.Println("Over! frames read:", i)
}

//A zero-byte file is a trajectory with no frames, not an error.
func TestXTCEmpty(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "empty.xtc")
	f, err := os.Create(name)
	if err != nil {
		Te.Fatal(err)
	}
	f.Close()
	traj, err := New(name)
	if err != nil {
		Te.Fatal(err)
	}
	defer traj.Close()
	if !traj.Readable() {
		Te.Error("empty trajectory should still be readable")
	}
	frame := xdr.NewFrame(0)
	if err := traj.Next(frame); !xdr.IsLastFrame(err) {
		Te.Error("wanted the last-frame signal, got:", err)
	}
}

func TestXTCOpenErrors(Te *testing.T) {
	_, err := New(filepath.Join(Te.TempDir(), "nosuch.xtc"))
	if xdr.KindOf(err) != xdr.NotFound {
		Te.Error("missing file: wanted NotFound, got", err)
	}
	name := filepath.Join(Te.TempDir(), "garbage.xtc")
	if err := os.WriteFile(name, []byte("not a trajectory at all"), 0644); err != nil {
		Te.Fatal(err)
	}
	_, err = New(name)
	if xdr.KindOf(err) != xdr.InvalidFormat {
		Te.Error("bad magic: wanted InvalidFormat, got", err)
	}
}

func TestXTCAtomCountMismatch(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "test.xtc")
	writeTestTraj(Te, name, 2)
	traj, err := New(name)
	if err != nil {
		Te.Fatal(err)
	}
	defer traj.Close()
	small := xdr.NewFrame(testAtoms - 1)
	if err := traj.Next(small); xdr.KindOf(err) != xdr.AtomCountMismatch {
		Te.Fatal("wanted AtomCountMismatch, got:", err)
	}
	//the refusal must not move the cursor: a well-sized frame still
	//gets the first frame of the file
	frame := xdr.NewFrame(testAtoms)
	if err := traj.Next(frame); err != nil {
		Te.Fatal(err)
	}
	if frame.Step != 0 {
		Te.Error("cursor moved on a refused read, got step", frame.Step)
	}
	w, err := NewWriter(filepath.Join(Te.TempDir(), "w.xtc"))
	if err != nil {
		Te.Fatal(err)
	}
	defer w.Close()
	if err := w.WNext(testFrame(0)); err != nil {
		Te.Fatal(err)
	}
	if err := w.WNext(small); xdr.KindOf(err) != xdr.AtomCountMismatch {
		Te.Error("writer accepted a frame of the wrong size:", err)
	}
}

//Chopping a file mid-frame must give Truncated, and because the read
//rewinds, the same call keeps giving Truncated instead of junk.
func TestXTCTruncated(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "test.xtc")
	writeTestTraj(Te, name, 2)
	fi, err := os.Stat(name)
	if err != nil {
		Te.Fatal(err)
	}
	if err := os.Truncate(name, fi.Size()-20); err != nil {
		Te.Fatal(err)
	}
	traj, err := New(name)
	if err != nil {
		Te.Fatal(err)
	}
	defer traj.Close()
	frame := xdr.NewFrame(traj.Len())
	if err := traj.Next(frame); err != nil {
		Te.Fatal("first frame should be whole:", err)
	}
	for try := 0; try < 2; try++ {
		if err := traj.Next(frame); xdr.KindOf(err) != xdr.Truncated {
			Te.Fatal("wanted Truncated, got:", err)
		}
	}
	if frame.Step != 0 {
		Te.Error("failed read touched the frame, step is", frame.Step)
	}
}

func TestXTCClose(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "test.xtc")
	writeTestTraj(Te, name, 1)
	traj, err := New(name)
	if err != nil {
		Te.Fatal(err)
	}
	if err := traj.Close(); err != nil {
		Te.Fatal(err)
	}
	if err := traj.Close(); err != nil { //idempotent
		Te.Fatal("second Close failed:", err)
	}
	frame := xdr.NewFrame(testAtoms)
	if err := traj.Next(frame); xdr.KindOf(err) != xdr.HandleClosed {
		Te.Error("read after Close: wanted HandleClosed, got", err)
	}
}

func TestXTCAppend(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "test.xtc")
	writeTestTraj(Te, name, 2)
	app, err := NewAppender(name)
	if err != nil {
		Te.Fatal(err)
	}
	if err := app.WNext(testFrame(2)); err != nil {
		Te.Fatal(err)
	}
	if err := app.Close(); err != nil {
		Te.Fatal(err)
	}
	traj, err := New(name)
	if err != nil {
		Te.Fatal(err)
	}
	defer traj.Close()
	frame := xdr.NewFrame(traj.Len())
	i := 0
	for ; ; i++ {
		if err := traj.Next(frame); err != nil {
			if xdr.IsLastFrame(err) {
				break
			}
			Te.Fatal(err)
		}
	}
	if i != 3 {
		Te.Error("frames after append:", i)
	}
}

//The whole trajectory survives the gzip and zstd containers.
func TestXTCContainers(Te *testing.T) {
	for _, suffix := range []string{".xtc.gz", ".xtc.zst"} {
		name := filepath.Join(Te.TempDir(), "test"+suffix)
		writeTestTraj(Te, name, 3)
		traj, err := New(name)
		if err != nil {
			Te.Fatal(err)
		}
		frame := xdr.NewFrame(traj.Len())
		i := 0
		for ; ; i++ {
			if err := traj.Next(frame); err != nil {
				if xdr.IsLastFrame(err) {
					break
				}
				Te.Fatal(err)
			}
		}
		if i != 3 {
			Te.Error(suffix, "frames read:", i)
		}
		traj.Close()
		fmt.Println(suffix, "roundtrip done")
	}
}

func TestXTCIterator(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "test.xtc")
	writeTestTraj(Te, name, 3)
	traj, err := New(name)
	if err != nil {
		Te.Fatal(err)
	}
	defer traj.Close()
	it := xdr.NewIterator(traj)
	var first, second *xdr.Frame
	for i := 0; ; i++ {
		frame, err := it.Next()
		if err != nil {
			if xdr.IsLastFrame(err) {
				break
			}
			Te.Fatal(err)
		}
		switch i {
		case 0:
			first = it.Keep()
		case 1:
			second = frame
		}
	}
	if !xdr.IsLastFrame(it.Err()) {
		Te.Error("iterator terminal error:", it.Err())
	}
	if first == second {
		Te.Error("Keep did not detach the frame from the iterator")
	}
	if first.Step != 0 {
		Te.Error("kept frame was overwritten, step is", first.Step)
	}
}
