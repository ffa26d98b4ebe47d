/*
 * iterator.go, part of goxdr.
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

// Iterator presents a trajectory as a lazy, finite, non-restartable
// sequence of Frames. It owns one backing Frame and decodes every step
// into it, so a full trajectory can be traversed with a single
// allocation; a caller that wants to hold on to the current Frame past
// the next step must say so through Keep, which makes the iterator
// allocate a fresh Frame for the following step instead of mutating
// the kept one.
//
// Whether reuse happens or not never changes the values yielded, only
// how much is allocated.
type Iterator struct {
	traj  Traj
	frame *Frame
	kept  bool
	err   error
}

// NewIterator returns an Iterator over traj, which must be open for
// reading and not otherwise used while the iterator is alive.
func NewIterator(traj Traj) *Iterator {
	return &Iterator{traj: traj}
}

// Next decodes and returns the next Frame, in strict on-disk order.
// The returned Frame is shared with the iterator and only valid until
// the following call to Next, unless Keep is called first. At the end
// of the trajectory Next returns a LastFrameError; after any error,
// terminal or not, every further call returns that same error.
func (it *Iterator) Next() (*Frame, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.frame == nil || it.kept {
		//the caller kept the previous frame (or this is the first
		//step), so it gets a fresh one
		it.frame = NewFrame(it.traj.Len())
		it.kept = false
	}
	if err := it.traj.Next(it.frame); err != nil {
		it.err = err
		return nil, err
	}
	return it.frame, nil
}

// Keep hands the current Frame over to the caller: the iterator
// renounces it and will decode the next step into a newly allocated
// Frame. It returns the current Frame for convenience; calling Keep
// before the first Next, or twice for the same step, is harmless.
func (it *Iterator) Keep() *Frame {
	it.kept = true
	return it.frame
}

// Err returns the error that terminated the iteration, nil while the
// iteration is still going, or the LastFrameError after a normal
// termination.
func (it *Iterator) Err() error {
	return it.err
}
