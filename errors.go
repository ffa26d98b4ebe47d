/*
 * errors.go, part of goxdr.
 *
 * Copyright 2023 Raul Mera <rmera{at}chemDOThelsinkiDOTfi>
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
 *
 */

package xdr

import (
	"fmt"

	"github.com/rmera/goxdr/xdrfile"
)

// Kind classifies every error this library can produce into a closed
// set. The end of a trajectory is deliberately not a Kind: it is
// reported as a LastFrameError, not as a failure.
type Kind int

const (
	//NotFound means the file does not exist (read/append mode).
	NotFound Kind = iota + 1
	//PermissionDenied means the file could not be accessed.
	PermissionDenied
	//InvalidFormat means a magic number or header check failed.
	InvalidFormat
	//Truncated means the stream ended in the middle of a frame.
	Truncated
	//AtomCountMismatch means a Frame's atom count disagrees with the
	//count the trajectory was fixed to.
	AtomCountMismatch
	//CodecFailure means the coordinate codec rejected its input. The
	//raw status code is preserved for diagnostics.
	CodecFailure
	//HandleClosed means the operation was attempted on a closed
	//handle, or on a handle open in the wrong mode.
	HandleClosed
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "file not found"
	case PermissionDenied:
		return "permission denied"
	case InvalidFormat:
		return "invalid format"
	case Truncated:
		return "truncated file"
	case AtomCountMismatch:
		return "atom count mismatch"
	case CodecFailure:
		return "codec failure"
	case HandleClosed:
		return "handle closed"
	}
	return "unknown error"
}

// KindFromStatus maps every status code of the underlying xdrfile
// layer to exactly one Kind. Codes outside the known enumeration fail
// closed as CodecFailure, never as success.
func KindFromStatus(s xdrfile.Status) Kind {
	switch s {
	case xdrfile.StatusMagic:
		return InvalidFormat
	case xdrfile.StatusFileNotFound:
		return NotFound
	case xdrfile.StatusHeader, xdrfile.StatusString, xdrfile.StatusDouble,
		xdrfile.StatusInt, xdrfile.StatusFloat, xdrfile.StatusUInt:
		return Truncated
	case xdrfile.Status3DCoord, xdrfile.StatusNoMem, xdrfile.StatusClose:
		return CodecFailure
	}
	return CodecFailure
}

// TrajError is the interface all errors of this library implement.
// The Decorate method allows to add and retrieve info from the error
// without changing its type or wrapping it around something else: each
// call appends the caller's name (plus any relevant extra) to a slice
// of strings, and returns the current slice. Passing an empty string
// only retrieves.
type TrajError interface {
	Error() string
	Decorate(string) []string
	Critical() bool
	FileName() string
	Format() string
}

// LastFrameError has a useless function to distinguish the harmless
// "no more frames" condition from actual errors, so it can be filtered
// in a typeswitch that looks for this interface.
type LastFrameError interface {
	TrajError
	NormalLastFrameTermination()
}

// IsLastFrame returns true if err only signals a normally terminated
// trajectory.
func IsLastFrame(err error) bool {
	_, ok := err.(LastFrameError)
	return ok
}

// Error is the concrete error type for trajectory failures. It
// fulfills TrajError.
type Error struct {
	kind     Kind
	code     int //raw xdrfile status, when the kind is CodecFailure
	message  string
	format   string //"xtc" or "trr"
	filename string
	deco     []string
}

// NewError builds an Error of the given kind for the given file.
func NewError(kind Kind, format, filename, message string) Error {
	return Error{kind: kind, format: format, filename: filename, message: message}
}

// NewCodecError builds an Error from a raw xdrfile status code,
// classifying it with KindFromStatus and preserving the code.
func NewCodecError(s xdrfile.Status, format, filename string) Error {
	return Error{
		kind:     KindFromStatus(s),
		code:     int(s),
		format:   format,
		filename: filename,
		message:  s.Error(),
	}
}

func (err Error) Error() string {
	return fmt.Sprintf("%s file %s error: %s: %s", err.format, err.filename, err.kind, err.message)
}

// Kind returns the taxonomy entry the error belongs to.
func (err Error) Kind() Kind { return err.kind }

// Code returns the raw status code behind a CodecFailure, 0 otherwise.
func (err Error) Code() int { return err.code }

// Decorate adds new information to the error
func (E Error) Decorate(deco string) []string {
	//Even though this method does not use a pointer as a receiver, and tries to alter the receiver,
	//it should work, since E.deco is a slice, and hence a pointer itself.
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

// FileName returns the file to which the failing trajectory was associated
func (err Error) FileName() string { return err.filename }

// Format returns the format ("xtc" or "trr") associated to the error
func (err Error) Format() string { return err.format }

// Critical returns true if the error is critical, false otherwise
func (err Error) Critical() bool { return true }

// KindOf returns the Kind of err, or 0 if err is not an Error of this
// library.
func KindOf(err error) Kind {
	if e, ok := err.(Error); ok {
		return e.Kind()
	}
	return 0
}

// lastFrameError implements LastFrameError
type lastFrameError struct {
	deco     []string
	format   string
	fileName string
}

// NormalLastFrameTermination does nothing
func (E lastFrameError) NormalLastFrameTermination() {}

func (E lastFrameError) FileName() string { return E.fileName }

func (E lastFrameError) Error() string { return "EOF" }

func (E lastFrameError) Critical() bool { return false }

func (E lastFrameError) Format() string { return E.format }

func (E lastFrameError) Decorate(deco string) []string {
	//Even though this method does not use a pointer as a receiver, and tries to alter the receiver,
	//it should work, since E.deco is a slice, and hence a pointer itself.
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

// NewLastFrame returns the non-critical error that marks the clean end
// of a trajectory.
func NewLastFrame(format, filename, caller string) LastFrameError {
	return &lastFrameError{fileName: filename, format: format, deco: []string{caller}}
}
