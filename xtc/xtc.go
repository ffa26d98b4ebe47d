/*
 * xtc.go, part of goxdr
 *
 * Copyright 2023 Raul Mera Adasme <rmera_changeforat_chem-dot-helsinki-dot-fi>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License  as published by
 * the Free Software Foundation; either version 2.1 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General Public License
 * along with this program; if not, write to the Free Software
 * Foundation, Inc., 51 Franklin Street, Fifth Floor, Boston,
 * MA 02110-1301, USA.
 *
 */

//Package xtc reads and writes GROMACS XTC binary trajectory files.
//XTC frames carry step, time, the box matrix and coordinates
//compressed with the 3dfcoord scheme; every frame is self-contained.
package xtc

import (
	"encoding/binary"
	"io"
	"os"

	xdr "github.com/rmera/goxdr"
	"github.com/rmera/goxdr/xdrfile"
)

// Magic is the tag that opens every XTC frame.
const Magic int32 = 1995

// DefaultPrecision is the coordinate precision used by writers unless
// the caller picks another one.
const DefaultPrecision float32 = 1000.0

const format = "xtc"

// XTCObj is a handle to an XTC trajectory file, open in exactly one of
// read, write or append mode.
type XTCObj struct {
	x        *xdrfile.File
	natoms   int
	filename string
	prec     float32
	readable bool
	writable bool
	fresh    bool //write handle with no frame written yet
	scratch  [][3]float32
}

// New opens the XTC trajectory with the given name for reading. The
// atom count is taken from the first frame header without consuming
// it; a file with no frames at all is a valid, empty trajectory.
func New(name string) (*XTCObj, error) {
	X := &XTCObj{filename: name, prec: DefaultPrecision}
	f, err := xdrfile.OpenRead(name)
	if err != nil {
		return nil, openError(err, name)
	}
	X.x = f
	head, err := f.Peek(8)
	if err != nil {
		if len(head) == 0 && err == io.EOF {
			X.readable = true //empty trajectory, first Next will just report EOF
			return X, nil
		}
		f.Close()
		return nil, xdr.NewError(xdr.InvalidFormat, format, name, "file too short for a frame header")
	}
	if int32(binary.BigEndian.Uint32(head)) != Magic {
		f.Close()
		return nil, xdr.NewError(xdr.InvalidFormat, format, name, "wrong magic number")
	}
	natoms := int32(binary.BigEndian.Uint32(head[4:]))
	if natoms < 0 {
		f.Close()
		return nil, xdr.NewError(xdr.InvalidFormat, format, name, "negative atom count in header")
	}
	X.natoms = int(natoms)
	X.readable = true
	return X, nil
}

// NewWriter creates (or truncates) an XTC trajectory for writing. The
// atom count is fixed by the first frame given to WNext. An optional
// precision overrides DefaultPrecision for the whole handle.
func NewWriter(name string, precision ...float32) (*XTCObj, error) {
	return newW(name, false, precision)
}

// NewAppender opens an XTC trajectory for appending, creating it if
// needed. As with NewWriter, the atom count is fixed by the first
// frame written through this handle.
func NewAppender(name string, precision ...float32) (*XTCObj, error) {
	return newW(name, true, precision)
}

func newW(name string, append bool, precision []float32) (*XTCObj, error) {
	X := &XTCObj{filename: name, prec: DefaultPrecision, fresh: true}
	if len(precision) > 0 && precision[0] > 0 {
		X.prec = precision[0]
	}
	var f *xdrfile.File
	var err error
	if append {
		f, err = xdrfile.OpenAppend(name)
	} else {
		f, err = xdrfile.OpenWrite(name)
	}
	if err != nil {
		return nil, openError(err, name)
	}
	X.x = f
	X.writable = true
	return X, nil
}

func openError(err error, name string) error {
	switch {
	case os.IsNotExist(err):
		return xdr.NewError(xdr.NotFound, format, name, err.Error())
	case os.IsPermission(err):
		return xdr.NewError(xdr.PermissionDenied, format, name, err.Error())
	}
	return xdr.NewError(xdr.CodecFailure, format, name, err.Error())
}

// Readable returns true if the object is ready to be read from, false
// otherwise. It doesn't guarantee that there is something to read.
func (X *XTCObj) Readable() bool {
	return X.readable && !X.x.Closed()
}

// Len returns the number of atoms per frame in the trajectory. For a
// write handle it is 0 until the first frame is written.
func (X *XTCObj) Len() int {
	return X.natoms
}

// Precision returns the coordinate precision of the last frame read,
// or the precision the handle writes with.
func (X *XTCObj) Precision() float32 {
	return X.prec
}

// Tell returns the current position in the file. For compressed
// containers the position refers to the uncompressed stream.
func (X *XTCObj) Tell() int64 {
	return X.x.Tell()
}

// Next decodes the next frame into frame, which must hold as many
// atoms as the trajectory. On success the previous contents of frame
// are fully overwritten; on failure they are left untouched and, for
// plain files, the file position is rewound so the same read can be
// attempted again. The end of the trajectory is reported as a
// LastFrameError.
func (X *XTCObj) Next(frame *xdr.Frame) error {
	if X.x.Closed() {
		return xdr.NewError(xdr.HandleClosed, format, X.filename, "handle is closed")
	}
	if !X.readable {
		return xdr.NewError(xdr.HandleClosed, format, X.filename, "handle not open for reading")
	}
	if X.natoms > 0 && frame.Len() != X.natoms {
		return xdr.NewError(xdr.AtomCountMismatch, format, X.filename, "frame does not match the trajectory's atom count")
	}
	pos := X.x.Tell()
	magic, err := X.x.ReadInt()
	if err != nil {
		if err == io.EOF {
			return xdr.NewLastFrame(format, X.filename, "Next")
		}
		return X.fail(pos, err)
	}
	if magic != Magic {
		return X.fail(pos, xdrfile.StatusMagic)
	}
	var hdr [2]int32 //natoms, step
	if err := X.x.ReadInts(hdr[:]); err != nil {
		return X.fail(pos, err)
	}
	if int(hdr[0]) != X.natoms {
		return X.fail(pos, xdrfile.StatusHeader)
	}
	time, err := X.x.ReadFloat()
	if err != nil {
		return X.fail(pos, err)
	}
	var box [3][3]float32
	for i := range box {
		if err := X.x.ReadFloats(box[i][:]); err != nil {
			return X.fail(pos, err)
		}
	}
	//coordinates go to a scratch block first, so a half-decoded frame
	//never reaches the caller
	if cap(X.scratch) < X.natoms {
		X.scratch = make([][3]float32, X.natoms)
	}
	coords := X.scratch[:X.natoms]
	prec, err := X.x.DecompressCoords(coords)
	if err != nil {
		return X.fail(pos, err)
	}
	frame.Step = int(hdr[1])
	frame.Time = time
	frame.Box = box
	frame.Lambda = 0
	frame.Vel = nil
	frame.Frc = nil
	copy(frame.Coords, coords)
	if prec > 0 {
		X.prec = prec
	}
	return nil
}

//fail maps a mid-frame error and restores the pre-call position when
//the stream allows it. A compressed container cannot rewind, so the
//handle goes unreadable instead.
func (X *XTCObj) fail(pos int64, err error) error {
	if X.x.Seekable() {
		X.x.Seek(pos, io.SeekStart)
	} else {
		X.readable = false
	}
	if s, ok := err.(xdrfile.Status); ok {
		if s == xdrfile.StatusMagic {
			return xdr.NewError(xdr.InvalidFormat, format, X.filename, "wrong magic number in frame")
		}
		if s == xdrfile.StatusHeader {
			return xdr.NewError(xdr.InvalidFormat, format, X.filename, "frame header disagrees with the trajectory's atom count")
		}
		return xdr.NewCodecError(s, format, X.filename)
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return xdr.NewError(xdr.Truncated, format, X.filename, "stream ends mid-frame")
	}
	return xdr.NewError(xdr.CodecFailure, format, X.filename, err.Error())
}

// WNext appends one frame to the trajectory. The first frame written
// fixes the handle's atom count; writing a frame with a different
// count afterwards fails with AtomCountMismatch and leaves the file
// untouched.
func (X *XTCObj) WNext(frame *xdr.Frame) error {
	if X.x.Closed() {
		return xdr.NewError(xdr.HandleClosed, format, X.filename, "handle is closed")
	}
	if !X.writable {
		return xdr.NewError(xdr.HandleClosed, format, X.filename, "handle not open for writing")
	}
	if frame == nil || frame.Coords == nil {
		return xdr.NewError(xdr.AtomCountMismatch, format, X.filename, "nil frame given")
	}
	if X.fresh {
		X.natoms = frame.Len()
		X.fresh = false
	} else if frame.Len() != X.natoms {
		return xdr.NewError(xdr.AtomCountMismatch, format, X.filename, "frame does not match the trajectory's atom count")
	}
	if err := X.x.WriteInt(Magic); err != nil {
		return X.wfail(err)
	}
	if err := X.x.WriteInts([]int32{int32(X.natoms), int32(frame.Step)}); err != nil {
		return X.wfail(err)
	}
	if err := X.x.WriteFloat(frame.Time); err != nil {
		return X.wfail(err)
	}
	for i := range frame.Box {
		if err := X.x.WriteFloats(frame.Box[i][:]); err != nil {
			return X.wfail(err)
		}
	}
	if err := X.x.CompressCoords(frame.Coords, X.prec); err != nil {
		return X.wfail(err)
	}
	return nil
}

func (X *XTCObj) wfail(err error) error {
	if s, ok := err.(xdrfile.Status); ok {
		return xdr.NewCodecError(s, format, X.filename)
	}
	return xdr.NewError(xdr.CodecFailure, format, X.filename, err.Error())
}

// Flush pushes buffered frames down to the operating system.
func (X *XTCObj) Flush() error {
	if X.x.Closed() {
		return xdr.NewError(xdr.HandleClosed, format, X.filename, "handle is closed")
	}
	if err := X.x.Flush(); err != nil {
		return xdr.NewError(xdr.CodecFailure, format, X.filename, err.Error())
	}
	return nil
}

// Close flushes pending writes and releases the file. It is
// idempotent: closing twice is a no-op. The handle cannot be reopened.
func (X *XTCObj) Close() error {
	if X.x.Closed() {
		return nil
	}
	X.readable = false
	X.writable = false
	if err := X.x.Close(); err != nil {
		return xdr.NewError(xdr.CodecFailure, format, X.filename, err.Error())
	}
	return nil
}
