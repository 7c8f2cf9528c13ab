package feature

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Unlimited indicates no limit for a countable feature (-1 chosen for SQL compatibility).
const Unlimited int64 = -1

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindBool Kind = iota
	KindLimit
)

// Value is a decoded entitlement value: either a boolean capability flag or
// a countable limit where Unlimited (-1) means no cap. Values are decoded
// once at the persistence boundary; resolvers never parse strings.
type Value struct {
	kind Kind
	flag bool
	n    int64
}

// BoolValue returns a boolean capability value.
func BoolValue(enabled bool) Value {
	return Value{kind: KindBool, flag: enabled}
}

// LimitValue returns a countable limit value. Negative inputs collapse to Unlimited.
func LimitValue(n int64) Value {
	if n < 0 {
		n = Unlimited
	}
	return Value{kind: KindLimit, n: n}
}

// UnlimitedValue returns a limit value with no cap.
func UnlimitedValue() Value {
	return Value{kind: KindLimit, n: Unlimited}
}

// Kind returns the variant of the value.
func (v Value) Kind() Kind { return v.kind }

// IsBool reports whether the value is a boolean capability flag.
func (v Value) IsBool() bool { return v.kind == KindBool }

// IsLimit reports whether the value is a countable limit.
func (v Value) IsLimit() bool { return v.kind == KindLimit }

// IsUnlimited reports whether the value is a limit with no cap.
func (v Value) IsUnlimited() bool { return v.kind == KindLimit && v.n == Unlimited }

// Bool returns the boolean flag. False for limit values.
func (v Value) Bool() bool { return v.kind == KindBool && v.flag }

// Limit returns the numeric limit. Zero for boolean values.
func (v Value) Limit() int64 {
	if v.kind != KindLimit {
		return 0
	}
	return v.n
}

// Grants reports whether the value makes the feature available at all:
// an enabled flag, a positive limit, or an unlimited limit.
func (v Value) Grants() bool {
	if v.kind == KindBool {
		return v.flag
	}
	return v.n > 0 || v.n == Unlimited
}

// ParseValue decodes the legacy string encoding ("true"/"false" for boolean
// features, integer string or "-1" for limits) into a typed Value.
func ParseValue(raw string, t Type) (Value, error) {
	raw = strings.TrimSpace(raw)

	switch t {
	case TypeBoolean:
		switch strings.ToLower(raw) {
		case "true", "1":
			return BoolValue(true), nil
		case "false", "0", "":
			return BoolValue(false), nil
		}
		return Value{}, errors.Join(ErrInvalidValue,
			fmt.Errorf("cannot parse %q as boolean", raw))

	case TypeLimit:
		if raw == "" {
			return LimitValue(0), nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			// Some legacy rows carry float-encoded limits like "10.0".
			f, ferr := strconv.ParseFloat(raw, 64)
			if ferr != nil {
				return Value{}, errors.Join(ErrInvalidValue,
					fmt.Errorf("cannot parse %q as limit", raw))
			}
			n = int64(f)
		}
		return LimitValue(n), nil
	}

	return Value{}, errors.Join(ErrInvalidValue,
		fmt.Errorf("unknown feature type %q", t))
}

// Encode returns the string encoding used at the persistence boundary.
func (v Value) Encode() string {
	if v.kind == KindBool {
		return strconv.FormatBool(v.flag)
	}
	return strconv.FormatInt(v.n, 10)
}
