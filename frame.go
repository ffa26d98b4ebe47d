/*
 * frame.go, part of goxdr.
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

	"gonum.org/v1/gonum/mat"
)

// Frame holds one snapshot of a trajectory: the simulation step and
// time, the periodic box matrix (all zeros means no periodicity) and
// one 3D vector per atom, in the trajectory's native unit (nm for
// GROMACS formats). Vel and Frc are only filled by TRR frames that
// carry the corresponding blocks, and are nil otherwise; Lambda is the
// TRR coupling parameter.
//
// The number of atoms is fixed when the Frame is built. Readers decode
// into the Frame in place, so a Frame can be carried through a whole
// trajectory without further allocation.
type Frame struct {
	Step   int
	Time   float32
	Lambda float32
	Box    [3][3]float32
	Coords [][3]float32
	Vel    [][3]float32
	Frc    [][3]float32
}

// NewFrame returns a Frame with room for natoms atoms.
func NewFrame(natoms int) *Frame {
	return &Frame{Coords: make([][3]float32, natoms)}
}

// Len returns the number of atoms in the Frame.
func (F *Frame) Len() int {
	return len(F.Coords)
}

// Clone returns a deep copy of the Frame, sharing no memory with it.
func (F *Frame) Clone() *Frame {
	N := &Frame{
		Step:   F.Step,
		Time:   F.Time,
		Lambda: F.Lambda,
		Box:    F.Box,
		Coords: make([][3]float32, len(F.Coords)),
	}
	copy(N.Coords, F.Coords)
	if F.Vel != nil {
		N.Vel = make([][3]float32, len(F.Vel))
		copy(N.Vel, F.Vel)
	}
	if F.Frc != nil {
		N.Frc = make([][3]float32, len(F.Frc))
		copy(N.Frc, F.Frc)
	}
	return N
}

// Dense returns the coordinates as a freshly allocated natoms x 3
// gonum matrix, for interoperation with the rest of the Go scientific
// stack.
func (F *Frame) Dense() *mat.Dense {
	d := mat.NewDense(len(F.Coords), 3, nil)
	for i, c := range F.Coords {
		d.Set(i, 0, float64(c[0]))
		d.Set(i, 1, float64(c[1]))
		d.Set(i, 2, float64(c[2]))
	}
	return d
}

// SetDense overwrites the Frame's coordinates with the contents of d,
// which must be a natoms x 3 matrix matching the Frame's atom count.
func (F *Frame) SetDense(d *mat.Dense) error {
	r, c := d.Dims()
	if c != 3 || r != len(F.Coords) {
		return fmt.Errorf("goxdr: matrix is %dx%d, frame holds %d atoms", r, c, len(F.Coords))
	}
	for i := 0; i < r; i++ {
		F.Coords[i][0] = float32(d.At(i, 0))
		F.Coords[i][1] = float32(d.At(i, 1))
		F.Coords[i][2] = float32(d.At(i, 2))
	}
	return nil
}
