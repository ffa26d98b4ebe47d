/*
 * doc.go, part of goxdr.
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

/*Package xdr reads and writes GROMACS XTC and TRR binary trajectory
files in pure Go, with no dependency on the C xdrfile library.

The format-specific handles live in the xtc and trr subpackages and
share this package's Frame type, error taxonomy and iterator:

	traj, err := xtc.New("md.xtc")
	if err != nil {
		//...
	}
	defer traj.Close()
	frame := xdr.NewFrame(traj.Len())
	for {
		err := traj.Next(frame)
		if err != nil {
			if xdr.IsLastFrame(err) {
				break //the trajectory just ended, no actual error
			}
			//...
		}
		//use frame.Coords, frame.Time, frame.Box ...
	}

The same loop can be written through an Iterator, which reuses one
backing Frame across steps unless the caller keeps it:

	it := xdr.NewIterator(traj)
	for frame, err := it.Next(); err == nil; frame, err = it.Next() {
		//frame is only valid until the next call to it.Next,
		//unless you call it.Keep()
	}

Files whose name ends in .gz or .zst are read and written through the
corresponding compressed container transparently.

Trajectories are iterated strictly in file order: each frame's position
depends on the size of the previous one, so there is no random access
and no concurrent decoding of a single handle. Independent handles on
the same path are safe to use from different goroutines.
*/
package xdr
