package amx

import "strings"

// IsPacked reports whether the string at p uses the packed encoding (four
// characters per cell, first character in the most significant byte).
func IsPacked(p Pointer) bool {
	return uint32(p.Load()) > UnpackedMax
}

// StrLen returns the number of characters of the string at p, in either
// encoding, not counting the terminator.
func StrLen(p Pointer) int {
	if IsPacked(p) {
		n := 0
		for i := 0; ; i++ {
			c, ok := p.mem.LoadCell(p.addr + Cell(i*CellSize))
			if !ok {
				return n
			}
			for shift := (CellSize - 1) * 8; shift >= 0; shift -= 8 {
				if byte(uint32(c)>>shift) == 0 {
					return n
				}
				n++
			}
		}
	}
	n := 0
	for {
		c, ok := p.mem.LoadCell(p.addr + Cell(n*CellSize))
		if !ok || c == 0 {
			return n
		}
		n++
	}
}

// GetString copies the string at p into host memory, reading at most size-1
// characters. size follows amx_GetString: it is the capacity of the
// destination including the terminator.
func GetString(p Pointer, size int) string {
	if size <= 1 {
		return ""
	}
	limit := size - 1
	var sb strings.Builder
	if IsPacked(p) {
		for i := 0; sb.Len() < limit; i++ {
			c := p.At(i)
			for shift := (CellSize - 1) * 8; shift >= 0 && sb.Len() < limit; shift -= 8 {
				ch := byte(uint32(c) >> shift)
				if ch == 0 {
					return sb.String()
				}
				sb.WriteByte(ch)
			}
		}
		return sb.String()
	}
	for i := 0; i < limit; i++ {
		c := p.At(i)
		if c == 0 {
			break
		}
		sb.WriteByte(byte(c))
	}
	return sb.String()
}

// SetString writes s into VM memory at p. size is the capacity of the
// destination in cells; the string is truncated so that it and its terminator
// fit. Nothing is written for a non-positive size.
func SetString(p Pointer, s string, packed bool, size int) {
	if size <= 0 {
		return
	}
	if !packed {
		if len(s) >= size {
			s = s[:size-1]
		}
		for i := 0; i < len(s); i++ {
			p.SetAt(i, Cell(s[i]))
		}
		p.SetAt(len(s), 0)
		return
	}
	if len(s) >= size*CellSize {
		s = s[:size*CellSize-1]
	}
	cells := len(s)/CellSize + 1
	for i := 0; i < cells; i++ {
		var c uint32
		for j := 0; j < CellSize; j++ {
			k := i*CellSize + j
			var ch byte
			if k < len(s) {
				ch = s[k]
			}
			c |= uint32(ch) << ((CellSize - 1 - j) * 8)
		}
		p.SetAt(i, Cell(c))
	}
}
