package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/highesttt/pawn-natives/pkg/amx"
)

type argKind int

const (
	argCell argKind = iota
	argString
	argRef
	argOut
)

type arg struct {
	kind argKind
	raw  string
	cell amx.Cell
	text string
	size int
	addr amx.Cell
}

type argList []*arg

func parseCell(s string) (amx.Cell, error) {
	if n, err := strconv.ParseInt(s, 0, 32); err == nil {
		return amx.Cell(n), nil
	}
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return amx.Ftoc(float32(f)), nil
}

func parseArgs(raw []string) (argList, error) {
	args := make(argList, 0, len(raw))
	for _, s := range raw {
		a := &arg{raw: s}
		switch {
		case strings.HasPrefix(s, "s:"):
			a.kind, a.text = argString, s[2:]
		case strings.HasPrefix(s, "out:"):
			n, err := strconv.Atoi(s[4:])
			if err != nil || n < 1 {
				return nil, fmt.Errorf("bad output buffer %q", s)
			}
			a.kind, a.size = argOut, n
		case strings.HasPrefix(s, "&"):
			c, err := parseCell(s[1:])
			if err != nil {
				return nil, err
			}
			a.kind, a.cell = argRef, c
		default:
			c, err := parseCell(s)
			if err != nil {
				return nil, err
			}
			a.cell = c
		}
		args = append(args, a)
	}
	return args, nil
}

// place allocates strings, references and buffers in env and returns the
// argument words of the call.
func (args argList) place(env backend) ([]amx.Cell, error) {
	words := make([]amx.Cell, 0, len(args))
	for _, a := range args {
		var err error
		switch a.kind {
		case argCell:
			words = append(words, a.cell)
			continue
		case argString:
			a.addr, err = env.AllocString(a.text, 0)
		case argOut:
			a.addr, err = env.AllocString("", a.size)
		case argRef:
			if a.addr, err = env.Alloc(1); err == nil {
				var p amx.Pointer
				if p, err = env.GetAddr(a.addr); err == nil {
					p.Store(a.cell)
				}
			}
		}
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", a.raw, err)
		}
		words = append(words, a.addr)
		if a.kind == argOut {
			words = append(words, amx.Cell(a.size))
		}
	}
	return words, nil
}

// report prints what the native left in references and output buffers.
func (args argList) report(env backend, w io.Writer) error {
	for i, a := range args {
		switch a.kind {
		case argOut:
			s, err := env.ReadString(a.addr)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "arg %d: %q\n", i+1, s)
		case argRef:
			p, err := env.GetAddr(a.addr)
			if err != nil {
				return err
			}
			v := p.Load()
			fmt.Fprintf(w, "arg %d: %d (float %g)\n", i+1, v, amx.Ctof(v))
		}
	}
	return nil
}
