package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type fieldKind uint8

const (
	fieldAbsent fieldKind = iota
	fieldNull
	fieldNumber
	fieldString
	fieldInvalid
)

var (
	// ErrFieldMissing is returned when a field was absent or null in the feed.
	ErrFieldMissing = errors.New("field missing")
	// ErrFieldInvalid is returned when a field cannot be coerced to the requested type.
	ErrFieldInvalid = errors.New("field not coercible")
)

// Field holds a scalar exactly as the telemetry feed sent it. Feeds are
// inconsistent about quoting numeric identifiers, so both JSON numbers and
// strings are accepted and coercion is deferred to the caller.
type Field struct {
	kind fieldKind
	raw  string
}

// NumberField builds a Field from a numeric value.
func NumberField(v float64) Field {
	return Field{kind: fieldNumber, raw: strconv.FormatFloat(v, 'f', -1, 64)}
}

// IntField builds a Field from an integer value.
func IntField(v int64) Field {
	return Field{kind: fieldNumber, raw: strconv.FormatInt(v, 10)}
}

// StringField builds a Field from a string value.
func StringField(s string) Field {
	return Field{kind: fieldString, raw: s}
}

// UnmarshalJSON implements json.Unmarshaler. Objects, arrays and booleans
// do not fail decoding; they yield a Field that reports ErrFieldInvalid, so
// one odd vehicle cannot spoil the rest of a feed.
func (f *Field) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = Field{kind: fieldNull}
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = Field{kind: fieldString, raw: s}
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			*f = Field{kind: fieldInvalid, raw: string(b)}
			return nil
		}
		*f = Field{kind: fieldNumber, raw: n.String()}
	}
	return nil
}

// Present reports whether the field carried a non-null value.
func (f Field) Present() bool {
	return f.kind == fieldNumber || f.kind == fieldString
}

// Check returns nil for a usable scalar, ErrFieldMissing for an absent or
// null field and ErrFieldInvalid for a value of the wrong JSON type.
func (f Field) Check() error {
	switch f.kind {
	case fieldNumber, fieldString:
		return nil
	case fieldInvalid:
		return fmt.Errorf("%w: unsupported value %s", ErrFieldInvalid, f.raw)
	default:
		return ErrFieldMissing
	}
}

// String returns the canonical code form of the field, or "" when absent.
func (f Field) String() string {
	if !f.Present() {
		return ""
	}
	return f.raw
}

// Float coerces the field to a finite float64.
func (f Field) Float() (float64, error) {
	if err := f.Check(); err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(f.raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not a number", ErrFieldInvalid, f.raw)
	}
	return v, nil
}

// Int coerces the field to an int. JSON numbers with a fractional part are
// truncated toward zero; strings must hold an integer literal.
func (f Field) Int() (int, error) {
	if err := f.Check(); err != nil {
		return 0, err
	}
	s := strings.TrimSpace(f.raw)
	if n, err := strconv.ParseInt(s, 10, 0); err == nil {
		return int(n), nil
	}
	if f.kind == fieldString {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrFieldInvalid, f.raw)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrFieldInvalid, f.raw)
	}
	return int(math.Trunc(v)), nil
}
