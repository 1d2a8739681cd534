package core

import (
	"math"
	"strconv"
	"strings"
)

// Field names one editable slot of a node's state.
type Field int

const (
	FieldRadial Field = iota
	FieldNormal
	FieldPrograde
	FieldTime
)

// Fields lists every editable slot in display order.
var Fields = []Field{FieldPrograde, FieldNormal, FieldRadial, FieldTime}

func (f Field) valid() bool { return f >= FieldRadial && f <= FieldTime }

func (f Field) String() string {
	switch f {
	case FieldRadial:
		return "radial"
	case FieldNormal:
		return "normal"
	case FieldPrograde:
		return "prograde"
	case FieldTime:
		return "time"
	default:
		return "unknown"
	}
}

// FieldState is the validation state of a field's text.
type FieldState int

const (
	// FieldValid means the text is the canonical form of the bound value.
	FieldValid FieldState = iota
	// FieldPending means the text ends in a bare decimal point; the user is
	// still typing a fraction.
	FieldPending
	// FieldUnparseable means the text is not a number.
	FieldUnparseable
)

func (s FieldState) String() string {
	switch s {
	case FieldValid:
		return "valid"
	case FieldPending:
		return "pending"
	case FieldUnparseable:
		return "unparseable"
	default:
		return "unknown"
	}
}

// FieldBuffer pairs the text of an input field with the numeric component
// of the owning manager's local state it edits.
//
// While the buffer is valid its text is FormatValue of the bound value.
// While it is not, the bound value is left as it was and the text holds
// the user's input verbatim.
type FieldBuffer struct {
	field Field
	text  string
	state FieldState
	value *float64
	owner *NodeManager
}

func newFieldBuffer(owner *NodeManager, f Field, value *float64) *FieldBuffer {
	b := &FieldBuffer{field: f, value: value, owner: owner}
	b.refresh()
	return b
}

// Field returns the slot this buffer is bound to.
func (b *FieldBuffer) Field() Field { return b.field }

// Text returns the text to display.
func (b *FieldBuffer) Text() string { return b.text }

// Valid reports whether the text parsed to the bound value.
func (b *FieldBuffer) Valid() bool { return b.state == FieldValid }

// State returns the validation state.
func (b *FieldBuffer) State() FieldState { return b.state }

// Value returns the bound numeric value.
func (b *FieldBuffer) Value() float64 { return *b.value }

// Set applies user text to the field.
func (b *FieldBuffer) Set(text string) {
	if text == b.text {
		return
	}
	b.text = text

	if strings.HasSuffix(text, ".") {
		b.transition(FieldPending)
		return
	}

	v, ok := ParseValue(text)
	if !ok {
		b.transition(FieldUnparseable)
		return
	}
	if v != *b.value {
		*b.value = v
		b.owner.markChanged()
	}
	// -0 == 0, so the text follows the bound value rather than v.
	b.text = FormatValue(*b.value)
	b.transition(FieldValid)
}

// Add increments the bound value by delta. It is driven by stepper
// controls, so there is no text to validate.
func (b *FieldBuffer) Add(delta float64) {
	b.Assign(*b.value + delta)
}

// Assign overwrites the bound value.
func (b *FieldBuffer) Assign(v float64) {
	*b.value = v
	b.refresh()
	b.owner.markChanged()
	b.owner.observeField(b.field, FieldValid)
}

// refresh rewrites the text from the bound value and marks it valid.
func (b *FieldBuffer) refresh() {
	b.text = FormatValue(*b.value)
	b.state = FieldValid
}

func (b *FieldBuffer) transition(s FieldState) {
	b.state = s
	b.owner.observeField(b.field, s)
}

// FormatValue returns the canonical text of v: the shortest decimal form
// that parses back to exactly v.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseValue parses field text. Surrounding whitespace is ignored and
// non-finite results are rejected.
func ParseValue(text string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
