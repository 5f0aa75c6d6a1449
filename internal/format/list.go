package format

import "strings"

// Policy decides what Append does when the opcode is already present.
type Policy int

const (
	// Overwrite replaces an existing entry with the same opcode.
	Overwrite Policy = iota
	// AppendIfAbsent leaves an existing entry untouched.
	AppendIfAbsent
)

// List is a sequence of format operations with at most one entry per opcode.
// The terminating OpEnd is implicit and is always present in Ops.
type List struct {
	ops []Op
}

// New builds a list, later operations overwriting earlier ones.
func New(ops ...Op) List {
	var l List
	for _, op := range ops {
		l.Append(op, Overwrite)
	}
	return l
}

// FromOps builds a list from a terminated sequence, stopping at the first
// OpEnd.
func FromOps(ops []Op) List {
	var l List
	for _, op := range ops {
		if op.Code == OpEnd {
			break
		}
		l.Append(op, Overwrite)
	}
	return l
}

func (l List) index(code Opcode) int {
	for i, op := range l.ops {
		if op.Code == code {
			return i
		}
	}
	return -1
}

// Append adds op according to p. Appending OpEnd is a no-op.
func (l *List) Append(op Op, p Policy) {
	if op.Code == OpEnd {
		return
	}
	i := l.index(op.Code)
	if i >= 0 && p == AppendIfAbsent {
		return
	}
	ops := make([]Op, len(l.ops), len(l.ops)+1)
	copy(ops, l.ops)
	if i >= 0 {
		ops[i] = op
	} else {
		ops = append(ops, op)
	}
	l.ops = ops
}

// Delete removes the entry for code and reports whether one existed.
func (l *List) Delete(code Opcode) bool {
	i := l.index(code)
	if i < 0 {
		return false
	}
	ops := make([]Op, 0, len(l.ops)-1)
	ops = append(ops, l.ops[:i]...)
	ops = append(ops, l.ops[i+1:]...)
	l.ops = ops
	return true
}

// Merge applies Append(op, p) to dst for every entry of src.
func Merge(src List, dst *List, p Policy) {
	for _, op := range src.ops {
		dst.Append(op, p)
	}
}

// Len returns the number of entries, not counting the terminator.
func (l List) Len() int { return len(l.ops) }

// Ops returns a copy of the entries followed by the OpEnd terminator.
func (l List) Ops() []Op {
	out := make([]Op, len(l.ops), len(l.ops)+1)
	copy(out, l.ops)
	return append(out, Op{Code: OpEnd})
}

// Clone returns an independent copy.
func (l List) Clone() List {
	return FromOps(l.ops)
}

// Has reports whether code is present.
func (l List) Has(code Opcode) bool { return l.index(code) >= 0 }

// Find returns the entry for code.
func (l List) Find(code Opcode) (Op, bool) {
	if i := l.index(code); i >= 0 {
		return l.ops[i], true
	}
	return Op{}, false
}

// Int returns the integer operand for code.
func (l List) Int(code Opcode) (int64, bool) {
	op, ok := l.Find(code)
	return op.Int, ok
}

// IntOr returns the integer operand for code, or def when absent.
func (l List) IntOr(code Opcode, def int64) int64 {
	if v, ok := l.Int(code); ok {
		return v
	}
	return def
}

// Rational returns the rational operand for code.
func (l List) Rational(code Opcode) (Rational, bool) {
	op, ok := l.Find(code)
	return op.Rat, ok
}

// Text returns the string operand for code.
func (l List) Text(code Opcode) (string, bool) {
	op, ok := l.Find(code)
	return op.Str, ok
}

// Layout returns the layout operand for code.
func (l List) Layout(code Opcode) (Layout, bool) {
	op, ok := l.Find(code)
	return op.Layout, ok && op.Layout != nil
}

// Describe renders the list for logging.
func (l List) Describe() string {
	parts := make([]string, 0, len(l.ops))
	for _, op := range l.ops {
		parts = append(parts, op.String())
	}
	return "[" + strings.Join(parts, " ") + "]"
}
