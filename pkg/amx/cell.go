// Package amx describes the calling convention of the Pawn abstract machine
// as seen from a native function: cells, VM addresses, the packed/unpacked
// string encodings and native registration.
//
// Machine is a small in-memory implementation of the same surface. It is not
// an interpreter, only enough of a data segment and a native table to drive
// natives the way a script would.
package amx

import "math"

// Cell is the machine word of the abstract machine. Every argument and every
// return value travels as a Cell.
type Cell int32

// CellSize is the width of a cell in bytes. The first word of a stack slice
// holds the byte count of the arguments that follow it.
const CellSize = 4

// UnpackedMax is the largest value the first cell of an unpacked string can
// hold. Anything above it means the string is packed.
const UnpackedMax = (1 << ((CellSize - 1) * 8)) - 1

// Ctof reinterprets the bits of a cell as a float. The abstract machine stores
// floats as their IEEE 754 bit pattern, it never converts them numerically.
func Ctof(c Cell) float32 {
	return math.Float32frombits(uint32(c))
}

// Ftoc is the inverse of Ctof.
func Ftoc(f float32) Cell {
	return Cell(math.Float32bits(f))
}

// Words returns the number of argument cells declared by a stack slice
// header.
func Words(header Cell) int {
	return int(header) / CellSize
}

// Header builds the first word of a stack slice carrying n arguments.
func Header(n int) Cell {
	return Cell(n * CellSize)
}
