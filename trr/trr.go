/*
 * trr.go, part of goxdr
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

//Package trr reads and writes GROMACS TRR binary trajectory files.
//TRR frames are uncompressed and may carry coordinates, velocities
//and forces, in single or double precision. The precision of each
//frame is recovered from its own header, so mixed files read fine;
//written frames are always single precision.
package trr

import (
	"encoding/binary"
	"io"
	"os"

	xdr "github.com/rmera/goxdr"
	"github.com/rmera/goxdr/xdrfile"
)

// Magic is the tag that opens every TRR frame.
const Magic int32 = 1993

const version = "GMX_trn_file"

const format = "trr"

//frame header field offsets, counted from the magic number: slen,
//the version string (length plus 12 bytes) and then 13 integers of
//which natoms is the eleventh.
const natomsOffset = 4 + 4 + 4 + len(version) + 10*4

// TRRObj is a handle to a TRR trajectory file, open in exactly one of
// read, write or append mode.
type TRRObj struct {
	x        *xdrfile.File
	natoms   int
	filename string
	readable bool
	writable bool
	fresh    bool
	//decode scratch, copied into the caller's frame only on success
	coords [][3]float32
	vel    [][3]float32
	frc    [][3]float32
}

//header mirrors the thirteen size and count fields of a TRR frame.
type header struct {
	irSize   int32
	eSize    int32
	boxSize  int32
	virSize  int32
	presSize int32
	topSize  int32
	symSize  int32
	xSize    int32
	vSize    int32
	fSize    int32
	natoms   int32
	step     int32
	nre      int32
	double   bool
	time     float32
	lambda   float32
}

// New opens the TRR trajectory with the given name for reading. The
// atom count is taken from the first frame header without consuming
// it; a file with no frames at all is a valid, empty trajectory.
func New(name string) (*TRRObj, error) {
	T := &TRRObj{filename: name}
	f, err := xdrfile.OpenRead(name)
	if err != nil {
		return nil, openError(err, name)
	}
	T.x = f
	head, err := f.Peek(natomsOffset + 4)
	if err != nil {
		if len(head) == 0 && err == io.EOF {
			T.readable = true
			return T, nil
		}
		f.Close()
		return nil, xdr.NewError(xdr.InvalidFormat, format, name, "file too short for a frame header")
	}
	if int32(binary.BigEndian.Uint32(head)) != Magic {
		f.Close()
		return nil, xdr.NewError(xdr.InvalidFormat, format, name, "wrong magic number")
	}
	natoms := int32(binary.BigEndian.Uint32(head[natomsOffset:]))
	if natoms < 0 {
		f.Close()
		return nil, xdr.NewError(xdr.InvalidFormat, format, name, "negative atom count in header")
	}
	T.natoms = int(natoms)
	T.readable = true
	return T, nil
}

// NewWriter creates (or truncates) a TRR trajectory for writing. The
// atom count is fixed by the first frame given to WNext.
func NewWriter(name string) (*TRRObj, error) {
	return newW(name, false)
}

// NewAppender opens a TRR trajectory for appending, creating it if
// needed.
func NewAppender(name string) (*TRRObj, error) {
	return newW(name, true)
}

func newW(name string, append bool) (*TRRObj, error) {
	T := &TRRObj{filename: name, fresh: true}
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
	T.x = f
	T.writable = true
	return T, nil
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
func (T *TRRObj) Readable() bool {
	return T.readable && !T.x.Closed()
}

// Len returns the number of atoms per frame in the trajectory. For a
// write handle it is 0 until the first frame is written.
func (T *TRRObj) Len() int {
	return T.natoms
}

// Tell returns the current position in the file. For compressed
// containers the position refers to the uncompressed stream.
func (T *TRRObj) Tell() int64 {
	return T.x.Tell()
}

// Next decodes the next frame into frame, which must hold as many
// atoms as the trajectory. On success the previous contents of frame
// are fully overwritten; velocities and forces are set only when the
// frame carries them, and cleared otherwise. On failure frame is left
// untouched and, for plain files, the file position is rewound. The
// end of the trajectory is reported as a LastFrameError.
func (T *TRRObj) Next(frame *xdr.Frame) error {
	if T.x.Closed() {
		return xdr.NewError(xdr.HandleClosed, format, T.filename, "handle is closed")
	}
	if !T.readable {
		return xdr.NewError(xdr.HandleClosed, format, T.filename, "handle not open for reading")
	}
	if T.natoms > 0 && frame.Len() != T.natoms {
		return xdr.NewError(xdr.AtomCountMismatch, format, T.filename, "frame does not match the trajectory's atom count")
	}
	pos := T.x.Tell()
	h, err := T.readHeader()
	if err != nil {
		if err == io.EOF {
			return xdr.NewLastFrame(format, T.filename, "Next")
		}
		return T.fail(pos, err)
	}
	if int(h.natoms) != T.natoms {
		return T.fail(pos, xdrfile.StatusHeader)
	}
	var box [3][3]float32
	if h.boxSize != 0 {
		if err := T.readMatrix(&box, h.double); err != nil {
			return T.fail(pos, err)
		}
	}
	//the virial and pressure tensors have no place in a frame, they
	//are read to keep the stream aligned and dropped
	var junk [3][3]float32
	if h.virSize != 0 {
		if err := T.readMatrix(&junk, h.double); err != nil {
			return T.fail(pos, err)
		}
	}
	if h.presSize != 0 {
		if err := T.readMatrix(&junk, h.double); err != nil {
			return T.fail(pos, err)
		}
	}
	coords, vel, frc := [][3]float32(nil), [][3]float32(nil), [][3]float32(nil)
	if h.xSize != 0 {
		T.coords = ensureVecs(T.coords, T.natoms)
		coords = T.coords
		if err := T.readVecs(coords, h.double); err != nil {
			return T.fail(pos, err)
		}
	}
	if h.vSize != 0 {
		T.vel = ensureVecs(T.vel, T.natoms)
		vel = T.vel
		if err := T.readVecs(vel, h.double); err != nil {
			return T.fail(pos, err)
		}
	}
	if h.fSize != 0 {
		T.frc = ensureVecs(T.frc, T.natoms)
		frc = T.frc
		if err := T.readVecs(frc, h.double); err != nil {
			return T.fail(pos, err)
		}
	}
	frame.Step = int(h.step)
	frame.Time = h.time
	frame.Lambda = h.lambda
	frame.Box = box
	if coords != nil {
		copy(frame.Coords, coords)
	} else {
		for i := range frame.Coords {
			frame.Coords[i] = [3]float32{}
		}
	}
	if vel != nil {
		frame.Vel = ensureVecs(frame.Vel, T.natoms)
		copy(frame.Vel, vel)
	} else {
		frame.Vel = nil
	}
	if frc != nil {
		frame.Frc = ensureVecs(frame.Frc, T.natoms)
		copy(frame.Frc, frc)
	} else {
		frame.Frc = nil
	}
	return nil
}

func (T *TRRObj) readHeader() (*header, error) {
	magic, err := T.x.ReadInt()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, xdrfile.StatusMagic
	}
	slen, err := T.x.ReadInt()
	if err != nil {
		return nil, err
	}
	if int(slen) != len(version)+1 {
		return nil, xdrfile.StatusString
	}
	tag, err := T.x.ReadString(len(version))
	if err != nil {
		return nil, err
	}
	if tag != version {
		return nil, xdrfile.StatusString
	}
	var h header
	ints := []*int32{&h.irSize, &h.eSize, &h.boxSize, &h.virSize,
		&h.presSize, &h.topSize, &h.symSize, &h.xSize, &h.vSize,
		&h.fSize, &h.natoms, &h.step, &h.nre}
	buf := make([]int32, len(ints))
	if err := T.x.ReadInts(buf); err != nil {
		return nil, err
	}
	for i, p := range ints {
		*p = buf[i]
	}
	//the float width is not stored, it is inferred from whichever
	//per-element block size is available
	switch {
	case h.boxSize != 0:
		h.double = h.boxSize/9 == 8
	case h.xSize != 0 && h.natoms > 0:
		h.double = h.xSize/(3*h.natoms) == 8
	case h.vSize != 0 && h.natoms > 0:
		h.double = h.vSize/(3*h.natoms) == 8
	case h.fSize != 0 && h.natoms > 0:
		h.double = h.fSize/(3*h.natoms) == 8
	}
	if h.double {
		t, err := T.x.ReadDouble()
		if err != nil {
			return nil, err
		}
		l, err := T.x.ReadDouble()
		if err != nil {
			return nil, err
		}
		h.time, h.lambda = float32(t), float32(l)
	} else {
		if h.time, err = T.x.ReadFloat(); err != nil {
			return nil, err
		}
		if h.lambda, err = T.x.ReadFloat(); err != nil {
			return nil, err
		}
	}
	return &h, nil
}

func (T *TRRObj) readMatrix(m *[3][3]float32, double bool) error {
	if !double {
		for i := range m {
			if err := T.x.ReadFloats(m[i][:]); err != nil {
				return err
			}
		}
		return nil
	}
	for i := range m {
		for j := range m[i] {
			v, err := T.x.ReadDouble()
			if err != nil {
				return err
			}
			m[i][j] = float32(v)
		}
	}
	return nil
}

func (T *TRRObj) readVecs(vs [][3]float32, double bool) error {
	if !double {
		for i := range vs {
			if err := T.x.ReadFloats(vs[i][:]); err != nil {
				return err
			}
		}
		return nil
	}
	for i := range vs {
		for j := 0; j < 3; j++ {
			v, err := T.x.ReadDouble()
			if err != nil {
				return err
			}
			vs[i][j] = float32(v)
		}
	}
	return nil
}

func ensureVecs(vs [][3]float32, n int) [][3]float32 {
	if cap(vs) < n {
		return make([][3]float32, n)
	}
	return vs[:n]
}

//fail maps a mid-frame error and restores the pre-call position when
//the stream allows it. A compressed container cannot rewind, so the
//handle goes unreadable instead.
func (T *TRRObj) fail(pos int64, err error) error {
	if T.x.Seekable() {
		T.x.Seek(pos, io.SeekStart)
	} else {
		T.readable = false
	}
	if s, ok := err.(xdrfile.Status); ok {
		switch s {
		case xdrfile.StatusMagic:
			return xdr.NewError(xdr.InvalidFormat, format, T.filename, "wrong magic number in frame")
		case xdrfile.StatusString:
			return xdr.NewError(xdr.InvalidFormat, format, T.filename, "frame header carries an unknown version tag")
		case xdrfile.StatusHeader:
			return xdr.NewError(xdr.InvalidFormat, format, T.filename, "frame header disagrees with the trajectory's atom count")
		}
		return xdr.NewCodecError(s, format, T.filename)
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return xdr.NewError(xdr.Truncated, format, T.filename, "stream ends mid-frame")
	}
	return xdr.NewError(xdr.CodecFailure, format, T.filename, err.Error())
}

// WNext appends one frame to the trajectory, in single precision. The
// box and the coordinates are always written; velocities and forces
// only when the frame carries them. The first frame written fixes the
// handle's atom count.
func (T *TRRObj) WNext(frame *xdr.Frame) error {
	if T.x.Closed() {
		return xdr.NewError(xdr.HandleClosed, format, T.filename, "handle is closed")
	}
	if !T.writable {
		return xdr.NewError(xdr.HandleClosed, format, T.filename, "handle not open for writing")
	}
	if frame == nil || frame.Coords == nil {
		return xdr.NewError(xdr.AtomCountMismatch, format, T.filename, "nil frame given")
	}
	if T.fresh {
		T.natoms = frame.Len()
		T.fresh = false
	} else if frame.Len() != T.natoms {
		return xdr.NewError(xdr.AtomCountMismatch, format, T.filename, "frame does not match the trajectory's atom count")
	}
	if len(frame.Vel) > 0 && len(frame.Vel) != T.natoms {
		return xdr.NewError(xdr.AtomCountMismatch, format, T.filename, "velocities do not match the trajectory's atom count")
	}
	if len(frame.Frc) > 0 && len(frame.Frc) != T.natoms {
		return xdr.NewError(xdr.AtomCountMismatch, format, T.filename, "forces do not match the trajectory's atom count")
	}
	h := header{
		boxSize: 9 * 4,
		xSize:   int32(3 * 4 * T.natoms),
		natoms:  int32(T.natoms),
		step:    int32(frame.Step),
		time:    frame.Time,
		lambda:  frame.Lambda,
	}
	if len(frame.Vel) > 0 {
		h.vSize = h.xSize
	}
	if len(frame.Frc) > 0 {
		h.fSize = h.xSize
	}
	if err := T.writeHeader(&h); err != nil {
		return T.wfail(err)
	}
	for i := range frame.Box {
		if err := T.x.WriteFloats(frame.Box[i][:]); err != nil {
			return T.wfail(err)
		}
	}
	if err := T.writeVecs(frame.Coords); err != nil {
		return T.wfail(err)
	}
	if h.vSize != 0 {
		if err := T.writeVecs(frame.Vel); err != nil {
			return T.wfail(err)
		}
	}
	if h.fSize != 0 {
		if err := T.writeVecs(frame.Frc); err != nil {
			return T.wfail(err)
		}
	}
	return nil
}

func (T *TRRObj) writeHeader(h *header) error {
	if err := T.x.WriteInt(Magic); err != nil {
		return err
	}
	if err := T.x.WriteInt(int32(len(version) + 1)); err != nil {
		return err
	}
	if err := T.x.WriteString(version); err != nil {
		return err
	}
	ints := []int32{h.irSize, h.eSize, h.boxSize, h.virSize,
		h.presSize, h.topSize, h.symSize, h.xSize, h.vSize,
		h.fSize, h.natoms, h.step, h.nre}
	if err := T.x.WriteInts(ints); err != nil {
		return err
	}
	if err := T.x.WriteFloat(h.time); err != nil {
		return err
	}
	return T.x.WriteFloat(h.lambda)
}

func (T *TRRObj) writeVecs(vs [][3]float32) error {
	for i := range vs {
		if err := T.x.WriteFloats(vs[i][:]); err != nil {
			return err
		}
	}
	return nil
}

func (T *TRRObj) wfail(err error) error {
	if s, ok := err.(xdrfile.Status); ok {
		return xdr.NewCodecError(s, format, T.filename)
	}
	return xdr.NewError(xdr.CodecFailure, format, T.filename, err.Error())
}

// Flush pushes buffered frames down to the operating system.
func (T *TRRObj) Flush() error {
	if T.x.Closed() {
		return xdr.NewError(xdr.HandleClosed, format, T.filename, "handle is closed")
	}
	if err := T.x.Flush(); err != nil {
		return xdr.NewError(xdr.CodecFailure, format, T.filename, err.Error())
	}
	return nil
}

// Close flushes pending writes and releases the file. It is
// idempotent: closing twice is a no-op. The handle cannot be reopened.
func (T *TRRObj) Close() error {
	if T.x.Closed() {
		return nil
	}
	T.readable = false
	T.writable = false
	if err := T.x.Close(); err != nil {
		return xdr.NewError(xdr.CodecFailure, format, T.filename, err.Error())
	}
	return nil
}
