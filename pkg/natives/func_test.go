package natives_test

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/highesttt/pawn-natives/pkg/amx"
	"github.com/highesttt/pawn-natives/pkg/inject"
	"github.com/highesttt/pawn-natives/pkg/natives"
)

func newRegistry(t *testing.T) (*natives.Registry, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return natives.NewRegistry(natives.WithLogger(zerolog.New(&buf))), &buf
}

func logLines(buf *bytes.Buffer) int {
	return strings.Count(buf.String(), "\n")
}

func TestEndToEnd(t *testing.T) {
	m := amx.NewMachine(256)
	reg, buf := newRegistry(t)

	var gotN int
	var gotIn, before string
	natives.MustFunc(reg, "Describe", func(n natives.Const[int], out *string, in string) {
		gotN, gotIn, before = n.Get(), in, *out
		*out = fmt.Sprintf("%d:%s", n.Get(), in)
	})
	if err := reg.Load(m); err != nil {
		t.Fatal(err)
	}

	outAddr, _ := m.AllocString("previous", 64)
	inAddr, _ := m.AllocString("the input text", 0)
	ret, err := m.Invoke("Describe", 42, outAddr, 64, inAddr)
	if err != nil || ret != 1 {
		t.Fatalf("Invoke = %d, %v", ret, err)
	}
	if gotN != 42 || gotIn != "the input text" || before != "previous" {
		t.Errorf("Do saw (%d, %q, %q)", gotN, before, gotIn)
	}
	if s, _ := m.ReadString(outAddr); s != "42:the input text" {
		t.Errorf("output = %q", s)
	}
	if s, _ := m.ReadString(inAddr); s != "the input text" {
		t.Errorf("input changed to %q", s)
	}
	if !strings.Contains(buf.String(), "Registering native Describe") {
		t.Errorf("missing registration log: %s", buf.String())
	}
}

func TestOutputStringTruncates(t *testing.T) {
	m := amx.NewMachine(64)
	reg, _ := newRegistry(t)
	f := natives.MustFunc(reg, "Fill", func(out *string) {
		*out = "0123456789"
	})
	addr, _ := m.AllocString("", 16)
	f.Invoke(m, addr, 8)
	if s, _ := m.ReadString(addr); s != "0123456" {
		t.Errorf("output = %q, want 7 characters", s)
	}
}

func TestOutputStringZeroLength(t *testing.T) {
	m := amx.NewMachine(16)
	reg, buf := newRegistry(t)
	called := false
	f := natives.MustFunc(reg, "Fill", func(out *string) {
		called = true
		if *out != "" {
			t.Errorf("*out = %q", *out)
		}
		*out = "ignored"
	})
	// The address is unaligned: dereferencing it would fail.
	if ret := f.Invoke(m, 3, 0); ret != 1 {
		t.Errorf("ret = %d", ret)
	}
	if !called || logLines(buf) != 0 {
		t.Errorf("called = %v, logs = %q", called, buf.String())
	}
}

func TestOutputStringNegativeLength(t *testing.T) {
	m := amx.NewMachine(16)
	reg, buf := newRegistry(t)
	called := false
	f := natives.MustFunc(reg, "Fill", func(out *string) { called = true })
	if ret := f.Invoke(m, 4, -1); ret != 0 {
		t.Errorf("ret = %d", ret)
	}
	if called {
		t.Error("Do ran")
	}
	if logLines(buf) != 1 || !strings.Contains(buf.String(), "invalid string length") {
		t.Errorf("logs = %q", buf.String())
	}
}

func TestWriteBackRules(t *testing.T) {
	m := amx.NewMachine(64)
	reg, _ := newRegistry(t)

	swap := natives.MustFunc(reg, "Swap", func(a, b natives.Ref[int]) {
		x := a.Get()
		a.Set(b.Get())
		b.Set(x)
	})
	double := natives.MustFunc(reg, "Double", func(v natives.ConstRef[float32]) float32 {
		return v.Get() * 2
	})
	plain := natives.MustFunc(reg, "Plain", func(v int) int {
		v++
		return v
	})

	a, _ := m.AllocArray(1)
	b, _ := m.AllocArray(2)
	swap.Invoke(m, a, b)
	if va, _ := m.Load(a); va != 2 {
		t.Errorf("a = %d after swap", va)
	}
	if vb, _ := m.Load(b); vb != 1 {
		t.Errorf("b = %d after swap", vb)
	}

	f, _ := m.AllocArray(amx.Ftoc(1.5))
	if got := amx.Ctof(double.Invoke(m, f)); got != 3 {
		t.Errorf("Double = %v", got)
	}
	if vf, _ := m.Load(f); amx.Ctof(vf) != 1.5 {
		t.Errorf("const ref changed to %v", amx.Ctof(vf))
	}

	params := []amx.Cell{amx.Header(1), 7}
	if ret := plain.Call(m, params); ret != 8 || params[1] != 7 {
		t.Errorf("Plain = %d, slot = %d", ret, params[1])
	}
}

func TestScalarConversions(t *testing.T) {
	m := amx.NewMachine(4)
	reg, _ := newRegistry(t)
	half := natives.MustFunc(reg, "Half", func(x float32) float32 { return x / 2 })
	not := natives.MustFunc(reg, "Not", func(b bool) bool { return !b })
	trunc := natives.MustFunc(reg, "Trunc", func(x int8) uint8 { return uint8(x) })

	if got := amx.Ctof(half.Invoke(m, amx.Ftoc(5))); got != 2.5 {
		t.Errorf("Half = %v", got)
	}
	if not.Invoke(m, 7) != 0 || not.Invoke(m, 0) != 1 {
		t.Error("Not")
	}
	// 0x1FF truncates to int8(-1), which is 0xFF as uint8.
	if got := trunc.Invoke(m, 0x1FF); got != 0xFF {
		t.Errorf("Trunc = %#x", int32(got))
	}
}

func TestFootprint(t *testing.T) {
	m := amx.NewMachine(64)
	reg, buf := newRegistry(t)
	called := 0
	f := natives.MustFunc(reg, "Four", func(a int, out *string, in string) { called++ })
	if f.Footprint() != 4 {
		t.Fatalf("Footprint = %d", f.Footprint())
	}
	s, _ := m.AllocString("x", 4)

	if ret := f.Invoke(m, 1, s, 4); ret != 0 || called != 0 {
		t.Errorf("footprint-1 words accepted: ret = %d", ret)
	}
	if !strings.Contains(buf.String(), `Exception in Four: \"insufficient arguments\"`) {
		t.Errorf("logs = %q", buf.String())
	}
	if ret := f.Invoke(m, 1, s, 4, s); ret != 1 || called != 1 {
		t.Errorf("footprint words rejected: ret = %d", ret)
	}

	// A header claiming more words than the slice carries.
	if ret := f.Call(m, []amx.Cell{amx.Header(5), 1, s, 4, s}); ret != 0 || called != 1 {
		t.Errorf("short slice accepted: ret = %d", ret)
	}
	if ret := f.Call(nil, nil); ret != 0 {
		t.Errorf("nil call = %d", ret)
	}
}

func TestVarArgs(t *testing.T) {
	m := amx.NewMachine(64)
	reg, _ := newRegistry(t)
	captured := -1
	f := natives.MustFunc(reg, "Sum", func(label string, va natives.VarArgs) int {
		captured = va.Len()
		sum := 0
		for i := range va.Len() {
			sum += va.Int(i)
		}
		return sum
	})
	label, _ := m.AllocString("sum", 0)
	a, _ := m.AllocArray(10)
	b, _ := m.AllocArray(20)
	c, _ := m.AllocArray(30)

	// Four words, capture starts at index 2: 4 - 2 + 1 addresses.
	if ret := f.Invoke(m, label, a, b, c); ret != 60 {
		t.Errorf("Sum = %d", ret)
	}
	if captured != 3 {
		t.Errorf("captured %d arguments", captured)
	}

	if ret := f.Invoke(m, label, a, 2); ret != 0 {
		t.Errorf("unresolvable vararg accepted: %d", ret)
	}
}

func TestVarArgsStrings(t *testing.T) {
	m := amx.NewMachine(64)
	reg, _ := newRegistry(t)
	var got []string
	f := natives.MustFunc(reg, "Join", func(va natives.VarArgs) int {
		for i := range va.Len() {
			got = append(got, va.String(i))
		}
		va.SetCell(0, 'J')
		return va.Len()
	})
	x, _ := m.AllocString("ab", 0)
	y, _ := m.AllocPackedString("cdef")
	f.Invoke(m, x, y)
	if !reflect.DeepEqual(got, []string{"ab", "cdef"}) {
		t.Errorf("got %q", got)
	}
	if s, _ := m.ReadString(x); s != "Jb" {
		t.Errorf("vararg not written through: %q", s)
	}
}

type counter struct {
	n int
}

func TestZeroFootprintParams(t *testing.T) {
	m := amx.NewMachine(16)
	reg, buf := newRegistry(t)
	ctr := &counter{}
	inject.Provide(reg.Container(), ctr)

	f := natives.MustFunc(reg, "Mix", func(a int, c natives.DI[counter], vm amx.AMX, b int) int {
		c.Get().n++
		if vm != m {
			t.Error("wrong interpreter")
		}
		return a*10 + b
	})
	var offsets []int
	for _, p := range f.Signature() {
		offsets = append(offsets, p.Offset)
	}
	if !reflect.DeepEqual(offsets, []int{1, 2, 2, 2}) || f.Footprint() != 2 {
		t.Errorf("offsets = %v, footprint = %d", offsets, f.Footprint())
	}
	if ret := f.Invoke(m, 4, 2); ret != 42 || ctr.n != 1 {
		t.Errorf("Mix = %d, n = %d", ret, ctr.n)
	}
	if refs := reg.Container().Refs(reflect.TypeFor[counter]()); refs != 1 {
		t.Errorf("reference leaked: Refs = %d", refs)
	}

	// Without an instance the call fails acceptably: no log.
	reg.Container().Remove(reflect.TypeFor[counter]())
	if ret := f.Invoke(m, 4, 2); ret != 0 {
		t.Errorf("Mix without instance = %d", ret)
	}
	if logLines(buf) != 0 {
		t.Errorf("logs = %q", buf.String())
	}
}

func TestArgRemap(t *testing.T) {
	m := amx.NewMachine(64)
	reg, _ := newRegistry(t)
	twice := natives.MustFunc(reg, "Twice", func(a int, again natives.Arg[int, natives.P0], b int) int {
		return a + again.Get() + b
	})
	if twice.Footprint() != 2 {
		t.Errorf("Footprint = %d", twice.Footprint())
	}
	if ret := twice.Invoke(m, 5, 1); ret != 11 {
		t.Errorf("Twice = %d", ret)
	}

	capacity := natives.MustFunc(reg, "Capacity", func(out *string, size natives.Arg[int, natives.P1]) int {
		*out = strings.Repeat("x", size.Get())
		return size.Get()
	})
	addr, _ := m.AllocString("", 8)
	if ret := capacity.Invoke(m, addr, 5); ret != 5 {
		t.Errorf("Capacity = %d", ret)
	}
	if s, _ := m.ReadString(addr); s != "xxxx" {
		t.Errorf("output = %q", s)
	}
}

type vehicle struct {
	id int
}

func TestExceptionMapping(t *testing.T) {
	m := amx.NewMachine(16)
	reg, buf := newRegistry(t)
	natives.AddLookup(reg, func(_ amx.AMX, c amx.Cell) (*vehicle, error) {
		if c <= 0 {
			return nil, natives.ErrCastFailure
		}
		return &vehicle{id: int(c)}, nil
	})
	model := natives.MustFunc(reg, "Model", func(v *vehicle) int { return v.id + 400 })
	fail := natives.MustFunc(reg, "Fail", func() (int, error) { return 5, errors.New("boom") })
	panicErr := natives.MustFunc(reg, "PanicErr", func() int { panic(fmt.Errorf("kaput")) })
	unknown := natives.MustFunc(reg, "Unknown", func() int { panic("wat") })

	if ret := model.Invoke(m, 11); ret != 411 {
		t.Errorf("Model = %d", ret)
	}
	if ret := model.Invoke(m, 0); ret != 0 || logLines(buf) != 0 {
		t.Errorf("acceptable failure: ret = %d, logs = %q", ret, buf.String())
	}

	if ret := fail.Invoke(m); ret != 0 || logLines(buf) != 1 {
		t.Errorf("error result: ret = %d, logs = %q", ret, buf.String())
	}
	if !strings.Contains(buf.String(), `Exception in Fail: \"boom\"`) {
		t.Errorf("logs = %q", buf.String())
	}
	buf.Reset()

	if ret := panicErr.Invoke(m); ret != 0 || logLines(buf) != 1 {
		t.Errorf("error panic: ret = %d, logs = %q", ret, buf.String())
	}
	buf.Reset()

	func() {
		defer func() {
			if r := recover(); r != "wat" {
				t.Errorf("recover() = %v", r)
			}
		}()
		unknown.Invoke(m)
		t.Error("unknown panic was swallowed")
	}()
	if logLines(buf) != 1 || !strings.Contains(buf.String(), "Unknown exception in Unknown") {
		t.Errorf("logs = %q", buf.String())
	}
	if unknown.AMX() != nil || unknown.Params() != nil {
		t.Error("context not cleared")
	}
}

func TestWriteBackOnFailure(t *testing.T) {
	m := amx.NewMachine(64)
	reg, buf := newRegistry(t)
	returned := natives.MustFunc(reg, "Returned", func(out *string, n natives.Ref[int32]) error {
		*out = "partial"
		n.Set(7)
		return errors.New("gave up")
	})
	panicked := natives.MustFunc(reg, "Panicked", func(out *string) int {
		*out = "halfway"
		panic(fmt.Errorf("gave up"))
	})

	out, _ := m.AllocString("", 16)
	ref, _ := m.AllocArray(0)
	if ret := returned.Invoke(m, out, 16, ref); ret != 0 {
		t.Errorf("Returned = %d", ret)
	}
	if s, _ := m.ReadString(out); s != "partial" {
		t.Errorf("output after error = %q", s)
	}
	if v, _ := m.Load(ref); v != 7 {
		t.Errorf("reference after error = %d", v)
	}

	if ret := panicked.Invoke(m, out, 16); ret != 0 {
		t.Errorf("Panicked = %d", ret)
	}
	if s, _ := m.ReadString(out); s != "halfway" {
		t.Errorf("output after panic = %q", s)
	}
	if logLines(buf) != 2 {
		t.Errorf("logs = %q", buf.String())
	}
}

type service struct {
	gen int
}

func TestInjectReplacedDuringCall(t *testing.T) {
	m := amx.NewMachine(4)
	reg, buf := newRegistry(t)
	c := reg.Container()
	inject.Provide(c, &service{gen: 1})

	f := natives.MustFunc(reg, "Generation", func(s natives.DI[service]) int {
		if s.Get().gen == 1 {
			inject.Provide(c, &service{gen: 2})
		}
		return s.Get().gen
	})
	if ret := f.Invoke(m); ret != 1 {
		t.Errorf("first call = %d", ret)
	}
	if refs := c.Refs(reflect.TypeFor[service]()); refs != 1 {
		t.Errorf("Refs of the replacement = %d, want 1", refs)
	}
	if ret := f.Invoke(m); ret != 2 {
		t.Errorf("second call = %d, want 2", ret)
	}
	if logLines(buf) != 0 {
		t.Errorf("logs = %q", buf.String())
	}
}

func TestContextBoundDuringCall(t *testing.T) {
	m := amx.NewMachine(4)
	reg, _ := newRegistry(t)
	var f *natives.Func
	seen := false
	f = natives.MustFunc(reg, "Ctx", func(x int) {
		seen = f.AMX() == m && len(f.Params()) == 2 && f.Params()[1] == amx.Cell(x)
	})
	f.Invoke(m, 9)
	if !seen {
		t.Error("context not bound during the call")
	}
	if f.AMX() != nil || f.Params() != nil {
		t.Error("context still bound after the call")
	}
}

func TestUnsupportedSignatures(t *testing.T) {
	reg, _ := newRegistry(t)
	for _, fn := range []any{
		func([]byte) {},
		func(*[]byte) {},
		func([]rune) {},
		func(*int) {},
		func(**string) {},
		func(map[string]int) {},
		func(...int) {},
		func() string { return "" },
		func() (int, int) { return 0, 0 },
		func(natives.Const[*string]) {},
		func(natives.Arg[amx.AMX, natives.P0]) {},
		42,
	} {
		_, err := natives.NewFunc(reg, "bad", fn)
		if !errors.Is(err, natives.ErrUnsupported) {
			t.Errorf("NewFunc(%T) err = %v", fn, err)
		}
	}
	if len(reg.Funcs()) != 0 {
		t.Errorf("rejected natives were registered: %d", len(reg.Funcs()))
	}

	defer func() {
		if recover() == nil {
			t.Error("MustFunc did not panic")
		}
	}()
	natives.MustFunc(reg, "bad", func([]byte) {})
}

func TestValueOfCellOf(t *testing.T) {
	if natives.ValueOf[float32](amx.Ftoc(0.25)) != 0.25 {
		t.Error("float")
	}
	if natives.CellOf(true) != 1 || natives.CellOf(uint16(0xFFFF)) != 0xFFFF {
		t.Error("bool/uint16")
	}
	if natives.ValueOf[int16](0x18000) != -0x8000 {
		t.Error("int16 truncation")
	}
}
