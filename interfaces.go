/*
 * interfaces.go, part of goxdr.
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

// Traj is the interface for a trajectory open for reading. Both the
// xtc and trr handles implement it.
type Traj interface {

	//Is the trajectory ready to be read?
	Readable() bool

	//Next decodes the next frame into frame, overwriting its previous
	//contents. The end of the trajectory is reported as a
	//LastFrameError.
	Next(frame *Frame) error

	//Returns the number of atoms per frame
	Len() int
}

// TrajW is the interface for a trajectory open for writing or
// appending.
type TrajW interface {

	//WNext appends one frame to the trajectory.
	WNext(frame *Frame) error

	//Returns the number of atoms per frame (0 before the first write)
	Len() int

	//Close flushes pending frames and releases the file. Idempotent.
	Close() error
}
