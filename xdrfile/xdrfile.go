/*
 * xdrfile.go, part of goxdr
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

//Package xdrfile implements the low-level XDR (External Data
//Representation) layer shared by the GROMACS xtc and trr trajectory
//formats: big-endian 4-byte units, opaque byte blocks padded to 4 bytes,
//and the 3dfcoord lossy coordinate compression scheme. It plays the role
//the xdrfile.c library plays for the C implementations.
package xdrfile

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Mode of an open File. Exactly one mode is active per handle.
type Mode int

const (
	Read Mode = iota
	Write
	Append
)

//This will cause additional indirections
//but I suppose it won't matter, as each call will
//take enough time to make those delays irrelevant.
//Also, why couldn't *zstd.Decoder implement io.ReadCloser? :-(
type stdql struct {
	closeql func() //The things I have to do xD
	*zstd.Decoder
}

//Close Closes the object. It can not be used after this call
func (s stdql) Close() error {
	s.closeql()
	return nil
}

type flusher interface {
	Flush() error
}

// File is a buffered XDR stream bound to one file and one access mode.
// Files whose name ends in ".gz" or ".zst" are transparently
// (de)compressed; those streams do not support Seek.
type File struct {
	f      *os.File
	r      *bufio.Reader
	w      *bufio.Writer
	dec    io.ReadCloser
	enc    io.WriteCloser
	mode   Mode
	plain  bool //no compressed container, so seeking is possible
	pos    int64
	closed bool
	//scratch space for the coordinate codec, reused across frames
	ints  []int32
	bytes []byte
}

// OpenRead opens name for reading.
func OpenRead(name string) (*File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	x := &File{f: f, mode: Read, plain: true}
	switch {
	case strings.HasSuffix(name, ".gz"):
		g, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		x.dec = g
		x.plain = false
		x.r = bufio.NewReader(g)
	case strings.HasSuffix(name, ".zst"):
		z, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		x.dec = stdql{z.Close, z}
		x.plain = false
		x.r = bufio.NewReader(z)
	default:
		x.r = bufio.NewReader(f)
	}
	return x, nil
}

// OpenWrite creates (or truncates) name for writing.
func OpenWrite(name string) (*File, error) {
	return openW(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, Write)
}

// OpenAppend opens name for appending, creating it if needed.
func OpenAppend(name string) (*File, error) {
	return openW(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, Append)
}

func openW(name string, flags int, mode Mode) (*File, error) {
	f, err := os.OpenFile(name, flags, 0644)
	if err != nil {
		return nil, err
	}
	x := &File{f: f, mode: mode, plain: true}
	switch {
	case strings.HasSuffix(name, ".gz"):
		x.enc = gzip.NewWriter(f)
		x.plain = false
		x.w = bufio.NewWriter(x.enc)
	case strings.HasSuffix(name, ".zst"):
		z, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		x.enc = z
		x.plain = false
		x.w = bufio.NewWriter(z)
	default:
		x.w = bufio.NewWriter(f)
	}
	return x, nil
}

// Mode returns the access mode the File was opened with.
func (x *File) Mode() Mode {
	return x.mode
}

// Closed returns true after the first call to Close.
func (x *File) Closed() bool {
	return x.closed
}

// Seekable returns true if the stream position can be rewound, i.e.
// the File is not going through a compressed container.
func (x *File) Seekable() bool {
	return x.plain
}

// Peek returns the next n bytes of a read File without consuming them.
func (x *File) Peek(n int) ([]byte, error) {
	return x.r.Peek(n)
}

// Tell returns the current position in the (uncompressed) XDR stream.
func (x *File) Tell() int64 {
	return x.pos
}

// Seek repositions a plain (uncompressed) File. The offset is
// interpreted against the XDR stream, like io.Seeker.
func (x *File) Seek(offset int64, whence int) (int64, error) {
	if !x.plain {
		return x.pos, StatusClose
	}
	if x.w != nil {
		if err := x.w.Flush(); err != nil {
			return x.pos, err
		}
	}
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = x.pos + offset
	default:
		end, err := x.f.Seek(0, io.SeekEnd)
		if err != nil {
			return x.pos, err
		}
		target = end + offset
	}
	n, err := x.f.Seek(target, io.SeekStart)
	if err != nil {
		return x.pos, err
	}
	if x.r != nil {
		x.r.Reset(x.f)
	}
	x.pos = n
	return n, nil
}

// Flush pushes buffered writes down to the operating system.
func (x *File) Flush() error {
	if x.w == nil {
		return nil
	}
	if err := x.w.Flush(); err != nil {
		return err
	}
	if fl, ok := x.enc.(flusher); ok && x.enc != nil {
		return fl.Flush()
	}
	return nil
}

// Close flushes any pending writes and releases the underlying file.
// It is idempotent: calling it twice is a no-op, not an error.
func (x *File) Close() error {
	if x.closed {
		return nil
	}
	x.closed = true
	var err error
	if x.w != nil {
		err = x.w.Flush()
	}
	if x.enc != nil {
		if e := x.enc.Close(); err == nil {
			err = e
		}
	}
	if x.dec != nil {
		if e := x.dec.Close(); err == nil {
			err = e
		}
	}
	if e := x.f.Close(); err == nil {
		err = e
	}
	return err
}

//The primitive XDR units. Everything is big endian and 4-byte aligned.
//Read errors are passed up as-is: io.EOF means a clean boundary between
//records, io.ErrUnexpectedEOF a record cut short.

func (x *File) readFull(p []byte) error {
	_, err := io.ReadFull(x.r, p)
	if err != nil {
		return err
	}
	x.pos += int64(len(p))
	return nil
}

// ReadInt reads one 4-byte big-endian signed integer.
func (x *File) ReadInt() (int32, error) {
	var b [4]byte
	if err := x.readFull(b[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b[:])), nil
}

// ReadInts fills p with consecutive integers.
func (x *File) ReadInts(p []int32) error {
	for i := range p {
		v, err := x.ReadInt()
		if err != nil {
			return err
		}
		p[i] = v
	}
	return nil
}

// ReadFloat reads one 4-byte big-endian IEEE float.
func (x *File) ReadFloat() (float32, error) {
	var b [4]byte
	if err := x.readFull(b[:]); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b[:])), nil
}

// ReadFloats fills p with consecutive floats.
func (x *File) ReadFloats(p []float32) error {
	for i := range p {
		v, err := x.ReadFloat()
		if err != nil {
			return err
		}
		p[i] = v
	}
	return nil
}

// ReadDouble reads one 8-byte big-endian IEEE float.
func (x *File) ReadDouble() (float64, error) {
	var b [8]byte
	if err := x.readFull(b[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b[:])), nil
}

// ReadOpaque fills p and discards the padding that aligns the block to
// 4 bytes.
func (x *File) ReadOpaque(p []byte) error {
	if err := x.readFull(p); err != nil {
		return err
	}
	if pad := pad4(len(p)); pad > 0 {
		var junk [3]byte
		if err := x.readFull(junk[:pad]); err != nil {
			return err
		}
	}
	return nil
}

// ReadString reads an XDR string: a length, the bytes, and the padding.
func (x *File) ReadString(max int) (string, error) {
	n, err := x.ReadInt()
	if err != nil {
		return "", err
	}
	if n < 0 || int(n) > max {
		return "", StatusString
	}
	b := make([]byte, int(n))
	if err := x.ReadOpaque(b); err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\x00"), nil
}

func (x *File) writeFull(p []byte) error {
	_, err := x.w.Write(p)
	if err != nil {
		return err
	}
	x.pos += int64(len(p))
	return nil
}

// WriteInt writes one 4-byte big-endian signed integer.
func (x *File) WriteInt(v int32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return x.writeFull(b[:])
}

// WriteInts writes all of p.
func (x *File) WriteInts(p []int32) error {
	for _, v := range p {
		if err := x.WriteInt(v); err != nil {
			return err
		}
	}
	return nil
}

// WriteFloat writes one 4-byte big-endian IEEE float.
func (x *File) WriteFloat(v float32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], math.Float32bits(v))
	return x.writeFull(b[:])
}

// WriteFloats writes all of p.
func (x *File) WriteFloats(p []float32) error {
	for _, v := range p {
		if err := x.WriteFloat(v); err != nil {
			return err
		}
	}
	return nil
}

// WriteDouble writes one 8-byte big-endian IEEE float.
func (x *File) WriteDouble(v float64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	return x.writeFull(b[:])
}

// WriteOpaque writes p followed by zero padding to a 4-byte boundary.
func (x *File) WriteOpaque(p []byte) error {
	if err := x.writeFull(p); err != nil {
		return err
	}
	if pad := pad4(len(p)); pad > 0 {
		var zero [3]byte
		return x.writeFull(zero[:pad])
	}
	return nil
}

// WriteString writes an XDR string: its length, bytes and padding.
func (x *File) WriteString(s string) error {
	if err := x.WriteInt(int32(len(s))); err != nil {
		return err
	}
	return x.WriteOpaque([]byte(s))
}

func pad4(n int) int {
	return (4 - n%4) % 4
}

func (x *File) intScratch(n int) []int32 {
	if cap(x.ints) < n {
		x.ints = make([]int32, n)
	}
	return x.ints[:n]
}

func (x *File) byteScratch(n int) []byte {
	if cap(x.bytes) < n {
		x.bytes = make([]byte, n)
	}
	return x.bytes[:n]
}
