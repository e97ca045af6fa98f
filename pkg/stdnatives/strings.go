package stdnatives

import (
	"errors"
	"strconv"
	"strings"

	"github.com/highesttt/pawn-natives/pkg/natives"
)

var errFormatArgs = errors.New("not enough arguments for format")

func registerStrings(reg *natives.Registry) error {
	return declare(reg,
		declaration{"strlen", func(s string) int {
			return len(s)
		}},
		// strcopy(dest[], size, const source[])
		declaration{"strcopy", func(dest *string, size natives.Arg[int, natives.P1], src string) int {
			*dest = src
			return written(src, size.Get())
		}},
		// format(output[], size, const format[], ...)
		declaration{"format", func(out *string, size natives.Arg[int, natives.P1], format string, args natives.VarArgs) (int, error) {
			s, err := Format(format, args)
			if err != nil {
				return 0, err
			}
			*out = s
			return written(s, size.Get()), nil
		}},
	)
}

// written is the number of characters of s a buffer of size cells holds
// next to the terminator.
func written(s string, size int) int {
	if size <= 0 {
		return 0
	}
	return min(len(s), size-1)
}

// Format expands a Pawn format string. Supported conversions are %d and %i
// for integers, %x for hex, %c for a character, %s for a string and %f for a
// float, which takes an optional precision such as %.2f. %% is a literal
// percent sign.
func Format(format string, args natives.VarArgs) (string, error) {
	var sb strings.Builder
	next := 0
	arg := func() (int, error) {
		if next >= args.Len() {
			return 0, errFormatArgs
		}
		next++
		return next - 1, nil
	}
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 == len(format) {
			sb.WriteByte(c)
			continue
		}
		i++
		prec := -1
		if format[i] == '.' {
			j := i + 1
			for j < len(format) && format[j] >= '0' && format[j] <= '9' {
				j++
			}
			if j < len(format) {
				prec, _ = strconv.Atoi(format[i+1 : j])
				i = j
			}
		}
		switch format[i] {
		case '%':
			sb.WriteByte('%')
		case 'd', 'i':
			n, err := arg()
			if err != nil {
				return "", err
			}
			sb.WriteString(strconv.Itoa(args.Int(n)))
		case 'x':
			n, err := arg()
			if err != nil {
				return "", err
			}
			sb.WriteString(strings.ToUpper(strconv.FormatUint(uint64(uint32(args.Cell(n))), 16)))
		case 'c':
			n, err := arg()
			if err != nil {
				return "", err
			}
			sb.WriteByte(byte(args.Cell(n)))
		case 's':
			n, err := arg()
			if err != nil {
				return "", err
			}
			sb.WriteString(args.String(n))
		case 'f':
			n, err := arg()
			if err != nil {
				return "", err
			}
			if prec < 0 {
				prec = 6
			}
			sb.WriteString(strconv.FormatFloat(float64(args.Float(n)), 'f', prec, 32))
		default:
			sb.WriteByte('%')
			sb.WriteByte(format[i])
		}
	}
	return sb.String(), nil
}
