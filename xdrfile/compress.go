/*
 * compress.go, part of goxdr
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

package xdrfile

import "math"

//The 3dfcoord scheme scales coordinates by a precision factor, rounds
//them to integers, and packs them with a variable number of bits taken
//from the magicints table. Consecutive atoms that sit close to each
//other (water hydrogens, mostly) are stored as short runs of small
//deltas instead of full-width integers. The bit layout below matches
//the reference C implementation exactly, so files are interchangeable.

const (
	firstIdx = 9
	//largest magnitude a scaled coordinate may reach before the
	//integer conversion would overflow
	maxAbs = float64(math.MaxInt32 - 2)
)

var magicints = [...]int32{
	0, 0, 0, 0, 0, 0, 0, 0, 0,
	8, 10, 12, 16, 20, 25, 32, 40, 50, 64,
	80, 101, 128, 161, 203, 256, 322, 406, 512,
	645, 812, 1024, 1290, 1625, 2048, 2580, 3250, 4096,
	5060, 6501, 8192, 10321, 13003, 16384, 20642, 26007, 32768,
	41285, 52015, 65536, 82570, 104031, 131072, 165140, 208063, 262144,
	330280, 416127, 524287, 660561, 832255, 1048576, 1321122, 1664510, 2097152,
	2642245, 3329021, 4194304, 5284491, 6658042, 8388607, 10568983, 13316085, 16777216,
}

//number of bits needed to store an unsigned integer below size
func sizeofint(size uint32) int {
	num := uint64(1)
	nbits := 0
	for uint64(size) >= num && nbits < 32 {
		nbits++
		num <<= 1
	}
	return nbits
}

//number of bits needed to store three unsigned integers, each below its
//size, packed as one mixed-radix number
func sizeofints(sizes [3]uint32) int {
	var bytes [32]uint32
	nbytes := 1
	bytes[0] = 1
	nbits := 0
	for _, sz := range sizes {
		tmp := uint32(0)
		bytecnt := 0
		for ; bytecnt < nbytes; bytecnt++ {
			tmp = bytes[bytecnt]*sz + tmp
			bytes[bytecnt] = tmp & 0xff
			tmp >>= 8
		}
		for tmp != 0 {
			bytes[bytecnt] = tmp & 0xff
			bytecnt++
			tmp >>= 8
		}
		nbytes = bytecnt
	}
	num := uint32(1)
	nbytes--
	for bytes[nbytes] >= num {
		nbits++
		num *= 2
	}
	return nbits + nbytes*8
}

type bitWriter struct {
	data     []byte
	cnt      int
	lastbits uint
	lastbyte uint32
}

func (b *bitWriter) writeBits(num uint32, nbits int) {
	for nbits >= 8 {
		b.lastbyte = (b.lastbyte << 8) | (num >> uint(nbits-8))
		b.data[b.cnt] = byte(b.lastbyte >> b.lastbits)
		b.cnt++
		nbits -= 8
	}
	if nbits > 0 {
		b.lastbyte = (b.lastbyte << uint(nbits)) | num
		b.lastbits += uint(nbits)
		if b.lastbits >= 8 {
			b.lastbits -= 8
			b.data[b.cnt] = byte(b.lastbyte >> b.lastbits)
			b.cnt++
		}
	}
	if b.lastbits > 0 {
		b.data[b.cnt] = byte(b.lastbyte << (8 - b.lastbits))
	}
}

func (b *bitWriter) writeInts(nbits int, sizes, nums [3]uint32) error {
	var bytes [32]uint32
	nbytes := 0
	tmp := nums[0]
	for {
		bytes[nbytes] = tmp & 0xff
		nbytes++
		tmp >>= 8
		if tmp == 0 {
			break
		}
	}
	for i := 1; i < 3; i++ {
		if nums[i] >= sizes[i] {
			return Status3DCoord
		}
		tmp = nums[i]
		for bytecnt := 0; bytecnt < nbytes; bytecnt++ {
			tmp = bytes[bytecnt]*sizes[i] + tmp
			bytes[bytecnt] = tmp & 0xff
			tmp >>= 8
		}
		for tmp != 0 {
			bytes[nbytes] = tmp & 0xff
			nbytes++
			tmp >>= 8
		}
	}
	if nbits >= nbytes*8 {
		for i := 0; i < nbytes; i++ {
			b.writeBits(bytes[i], 8)
		}
		b.writeBits(0, nbits-nbytes*8)
		return nil
	}
	for i := 0; i < nbytes-1; i++ {
		b.writeBits(bytes[i], 8)
	}
	b.writeBits(bytes[nbytes-1], nbits-(nbytes-1)*8)
	return nil
}

type bitReader struct {
	data     []byte
	cnt      int
	lastbits uint
	lastbyte uint32
	bad      bool //set when the declared byte count runs out mid-read
}

func (b *bitReader) nextByte() uint32 {
	if b.cnt >= len(b.data) {
		b.bad = true
		return 0
	}
	v := uint32(b.data[b.cnt])
	b.cnt++
	return v
}

func (b *bitReader) readBits(nbits int) uint32 {
	mask := uint32(1)<<uint(nbits) - 1
	var num uint32
	for nbits >= 8 {
		b.lastbyte = (b.lastbyte << 8) | b.nextByte()
		num |= (b.lastbyte >> b.lastbits) << uint(nbits-8)
		nbits -= 8
	}
	if nbits > 0 {
		if b.lastbits < uint(nbits) {
			b.lastbits += 8
			b.lastbyte = (b.lastbyte << 8) | b.nextByte()
		}
		b.lastbits -= uint(nbits)
		num |= (b.lastbyte >> b.lastbits) & (uint32(1)<<uint(nbits) - 1)
	}
	return num & mask
}

func (b *bitReader) readInts(nbits int, sizes [3]uint32) [3]int32 {
	var bytes [32]uint32
	nbytes := 0
	for nbits > 8 {
		bytes[nbytes] = b.readBits(8)
		nbytes++
		nbits -= 8
	}
	if nbits > 0 {
		bytes[nbytes] = b.readBits(nbits)
		nbytes++
	}
	var nums [3]int32
	for i := 2; i > 0; i-- {
		num := uint32(0)
		for p := nbytes - 1; p >= 0; p-- {
			num = (num << 8) | bytes[p]
			q := num / sizes[i]
			bytes[p] = q
			num -= q * sizes[i]
		}
		nums[i] = int32(num)
	}
	nums[0] = int32(bytes[0] | bytes[1]<<8 | bytes[2]<<16 | bytes[3]<<24)
	return nums
}

func iabs(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// CompressCoords writes one 3dfcoord block for coords, scaled by
// precision. Blocks of nine atoms or fewer are stored as raw floats,
// as the format mandates.
func (x *File) CompressCoords(coords [][3]float32, precision float32) error {
	size := len(coords)
	if err := x.WriteInt(int32(size)); err != nil {
		return err
	}
	if size <= 9 {
		for _, c := range coords {
			if err := x.WriteFloats(c[:]); err != nil {
				return err
			}
		}
		return nil
	}
	if err := x.WriteFloat(precision); err != nil {
		return err
	}
	size3 := size * 3
	ip := x.intScratch(size3)
	minint := [3]int32{math.MaxInt32, math.MaxInt32, math.MaxInt32}
	maxint := [3]int32{math.MinInt32, math.MinInt32, math.MinInt32}
	mindiff := int32(math.MaxInt32)
	var oldlint [3]int32
	for i, c := range coords {
		var lint [3]int32
		for d := 0; d < 3; d++ {
			lf := c[d] * precision
			if lf >= 0 {
				lf += 0.5
			} else {
				lf -= 0.5
			}
			if float64(lf) > maxAbs || float64(lf) < -maxAbs {
				return Status3DCoord //scaling would overflow the integer grid
			}
			lint[d] = int32(lf)
			if lint[d] < minint[d] {
				minint[d] = lint[d]
			}
			if lint[d] > maxint[d] {
				maxint[d] = lint[d]
			}
			ip[i*3+d] = lint[d]
		}
		if i > 0 {
			diff := iabs(oldlint[0]-lint[0]) + iabs(oldlint[1]-lint[1]) + iabs(oldlint[2]-lint[2])
			if diff < mindiff {
				mindiff = diff
			}
		}
		oldlint = lint
	}
	if err := x.WriteInts(minint[:]); err != nil {
		return err
	}
	if err := x.WriteInts(maxint[:]); err != nil {
		return err
	}
	if float64(maxint[0])-float64(minint[0]) >= maxAbs ||
		float64(maxint[1])-float64(minint[1]) >= maxAbs ||
		float64(maxint[2])-float64(minint[2]) >= maxAbs {
		return Status3DCoord //shifting to unsigned would overflow
	}
	var sizeint [3]uint32
	for d := range sizeint {
		sizeint[d] = uint32(maxint[d]-minint[d]) + 1
	}
	var bitsizeint [3]int
	bitsize := 0
	if (sizeint[0] | sizeint[1] | sizeint[2]) > 0xffffff {
		for d := range bitsizeint {
			bitsizeint[d] = sizeofint(sizeint[d])
		}
	} else {
		bitsize = sizeofints(sizeint)
	}
	smallidx := firstIdx
	for smallidx < len(magicints)-1 && magicints[smallidx] < mindiff {
		smallidx++
	}
	if err := x.WriteInt(int32(smallidx)); err != nil {
		return err
	}
	maxidx := smallidx + 8
	if maxidx > len(magicints)-1 {
		maxidx = len(magicints) - 1
	}
	minidx := maxidx - 8
	t := smallidx - 1
	if t < firstIdx {
		t = firstIdx
	}
	smaller := magicints[t] / 2
	smallnum := magicints[smallidx] / 2
	sz := uint32(magicints[smallidx])
	sizesmall := [3]uint32{sz, sz, sz}
	larger := magicints[maxidx] / 2

	bw := bitWriter{data: x.byteScratch(size3*16 + 32)}
	var prevcoord [3]int32
	var tmpcoord [30]uint32
	prevrun := -1
	i := 0
	for i < size {
		base := i * 3
		isSmall := false
		isSmaller := 0
		if smallidx < maxidx && i >= 1 &&
			iabs(ip[base]-prevcoord[0]) < larger &&
			iabs(ip[base+1]-prevcoord[1]) < larger &&
			iabs(ip[base+2]-prevcoord[2]) < larger {
			isSmaller = 1
		} else if smallidx > minidx {
			isSmaller = -1
		}
		if i+1 < size &&
			iabs(ip[base]-ip[base+3]) < smallnum &&
			iabs(ip[base+1]-ip[base+4]) < smallnum &&
			iabs(ip[base+2]-ip[base+5]) < smallnum {
			//swap the first atom of the run with the second: waters
			//compress better when the oxygen goes in the middle
			ip[base], ip[base+3] = ip[base+3], ip[base]
			ip[base+1], ip[base+4] = ip[base+4], ip[base+1]
			ip[base+2], ip[base+5] = ip[base+5], ip[base+2]
			isSmall = true
		}
		tmpcoord[0] = uint32(ip[base] - minint[0])
		tmpcoord[1] = uint32(ip[base+1] - minint[1])
		tmpcoord[2] = uint32(ip[base+2] - minint[2])
		if bitsize == 0 {
			bw.writeBits(tmpcoord[0], bitsizeint[0])
			bw.writeBits(tmpcoord[1], bitsizeint[1])
			bw.writeBits(tmpcoord[2], bitsizeint[2])
		} else {
			if err := bw.writeInts(bitsize, sizeint, [3]uint32{tmpcoord[0], tmpcoord[1], tmpcoord[2]}); err != nil {
				return err
			}
		}
		prevcoord[0], prevcoord[1], prevcoord[2] = ip[base], ip[base+1], ip[base+2]
		i++
		base += 3

		run := 0
		if !isSmall && isSmaller == -1 {
			isSmaller = 0
		}
		for isSmall && run < 8*3 {
			if isSmaller == -1 {
				d0 := int64(ip[base] - prevcoord[0])
				d1 := int64(ip[base+1] - prevcoord[1])
				d2 := int64(ip[base+2] - prevcoord[2])
				if d0*d0+d1*d1+d2*d2 >= int64(smaller)*int64(smaller) {
					isSmaller = 0
				}
			}
			tmpcoord[run] = uint32(ip[base] - prevcoord[0] + smallnum)
			tmpcoord[run+1] = uint32(ip[base+1] - prevcoord[1] + smallnum)
			tmpcoord[run+2] = uint32(ip[base+2] - prevcoord[2] + smallnum)
			run += 3
			prevcoord[0], prevcoord[1], prevcoord[2] = ip[base], ip[base+1], ip[base+2]
			i++
			base += 3
			isSmall = i < size &&
				iabs(ip[base]-prevcoord[0]) < smallnum &&
				iabs(ip[base+1]-prevcoord[1]) < smallnum &&
				iabs(ip[base+2]-prevcoord[2]) < smallnum
		}
		if run != prevrun || isSmaller != 0 {
			prevrun = run
			bw.writeBits(1, 1)
			bw.writeBits(uint32(run+isSmaller+1), 5)
		} else {
			bw.writeBits(0, 1)
		}
		for k := 0; k < run; k += 3 {
			if err := bw.writeInts(smallidx, sizesmall, [3]uint32{tmpcoord[k], tmpcoord[k+1], tmpcoord[k+2]}); err != nil {
				return err
			}
		}
		if isSmaller != 0 {
			smallidx += isSmaller
			if isSmaller < 0 {
				smallnum = smaller
				smaller = magicints[smallidx-1] / 2
			} else {
				smaller = smallnum
				smallnum = magicints[smallidx] / 2
			}
			sz = uint32(magicints[smallidx])
			sizesmall[0], sizesmall[1], sizesmall[2] = sz, sz, sz
		}
	}
	nbytes := bw.cnt
	if bw.lastbits != 0 {
		nbytes++
	}
	if err := x.WriteInt(int32(nbytes)); err != nil {
		return err
	}
	return x.WriteOpaque(bw.data[:nbytes])
}

// DecompressCoords reads one 3dfcoord block into coords, whose length
// must equal the atom count declared by the block. The precision the
// block was written with is returned; raw (nine atoms or fewer) blocks
// carry no precision and return 0.
func (x *File) DecompressCoords(coords [][3]float32) (float32, error) {
	lsize, err := x.ReadInt()
	if err != nil {
		return 0, err
	}
	if int(lsize) != len(coords) {
		return 0, Status3DCoord
	}
	size := int(lsize)
	if size <= 9 {
		for i := range coords {
			if err := x.ReadFloats(coords[i][:]); err != nil {
				return 0, err
			}
		}
		return 0, nil
	}
	precision, err := x.ReadFloat()
	if err != nil {
		return 0, err
	}
	var minint, maxint [3]int32
	if err := x.ReadInts(minint[:]); err != nil {
		return 0, err
	}
	if err := x.ReadInts(maxint[:]); err != nil {
		return 0, err
	}
	var sizeint [3]uint32
	for d := range sizeint {
		sizeint[d] = uint32(maxint[d]-minint[d]) + 1
	}
	var bitsizeint [3]int
	bitsize := 0
	if (sizeint[0] | sizeint[1] | sizeint[2]) > 0xffffff {
		for d := range bitsizeint {
			bitsizeint[d] = sizeofint(sizeint[d])
		}
	} else {
		bitsize = sizeofints(sizeint)
	}
	si, err := x.ReadInt()
	if err != nil {
		return 0, err
	}
	smallidx := int(si)
	if smallidx < firstIdx || smallidx > len(magicints)-1 {
		return 0, Status3DCoord
	}
	t := smallidx - 1
	if t < firstIdx {
		t = firstIdx
	}
	smaller := magicints[t] / 2
	smallnum := magicints[smallidx] / 2
	sz := uint32(magicints[smallidx])
	sizesmall := [3]uint32{sz, sz, sz}
	nb, err := x.ReadInt()
	if err != nil {
		return 0, err
	}
	if nb < 0 || int(nb) > size*16+32 {
		return 0, Status3DCoord //declared size cannot belong to this atom count
	}
	data := x.byteScratch(int(nb))
	if err := x.ReadOpaque(data); err != nil {
		return 0, err
	}
	br := bitReader{data: data}
	invp := 1.0 / precision
	out := 0
	put := func(c [3]int32) bool {
		if out >= size {
			return false
		}
		coords[out][0] = float32(c[0]) * invp
		coords[out][1] = float32(c[1]) * invp
		coords[out][2] = float32(c[2]) * invp
		out++
		return true
	}
	var prevcoord [3]int32
	run := 0
	i := 0
	for i < size {
		var this [3]int32
		if bitsize == 0 {
			this[0] = int32(br.readBits(bitsizeint[0]))
			this[1] = int32(br.readBits(bitsizeint[1]))
			this[2] = int32(br.readBits(bitsizeint[2]))
		} else {
			this = br.readInts(bitsize, sizeint)
		}
		i++
		this[0] += minint[0]
		this[1] += minint[1]
		this[2] += minint[2]
		prevcoord = this
		isSmaller := 0
		if br.readBits(1) == 1 {
			r := int(br.readBits(5))
			isSmaller = r % 3
			run = r - isSmaller
			isSmaller--
		}
		if run > 0 {
			for k := 0; k < run; k += 3 {
				d := br.readInts(smallidx, sizesmall)
				i++
				d[0] += prevcoord[0] - smallnum
				d[1] += prevcoord[1] - smallnum
				d[2] += prevcoord[2] - smallnum
				if k == 0 {
					//the atom swap from the write side, undone
					d[0], prevcoord[0] = prevcoord[0], d[0]
					d[1], prevcoord[1] = prevcoord[1], d[1]
					d[2], prevcoord[2] = prevcoord[2], d[2]
					if !put(prevcoord) {
						return 0, Status3DCoord
					}
				} else {
					prevcoord = d
				}
				if !put(d) {
					return 0, Status3DCoord
				}
			}
		} else {
			if !put(this) {
				return 0, Status3DCoord
			}
		}
		smallidx += isSmaller
		if isSmaller < 0 {
			smallnum = smaller
			if smallidx > firstIdx {
				smaller = magicints[smallidx-1] / 2
			} else {
				smaller = 0
			}
		} else if isSmaller > 0 {
			smaller = smallnum
			smallnum = magicints[smallidx] / 2
		}
		if smallidx < 0 || smallidx > len(magicints)-1 {
			return 0, Status3DCoord
		}
		sz = uint32(magicints[smallidx])
		if sz == 0 {
			return 0, Status3DCoord
		}
		sizesmall[0], sizesmall[1], sizesmall[2] = sz, sz, sz
	}
	if br.bad || out != size {
		return 0, Status3DCoord
	}
	return precision, nil
}
