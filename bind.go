package boreal

import (
	"fmt"
	"time"
)

// BindInput associates a statement parameter position with a native value.
// Positions are 1-based and may be sparse: binding index 5 without indices
// 1 through 4 is valid and serializes only the bound positions.
type BindInput struct {
	Index int
	Kind  NativeKind
	Value any
}

// BindOutput associates a result column position with a caller-owned
// destination. Value must be a pointer matching Kind. MaxLength caps string
// writes (0 means uncapped) and Len, when non-nil, receives the number of
// bytes written on each fetch.
type BindOutput struct {
	Index     int
	Kind      NativeKind
	Value     any
	MaxLength int
	Len       *int
}

// normalizeBindInput widens convenience types to the kind's canonical
// representation and rejects values that do not match the declared kind.
func normalizeBindInput(in BindInput) (BindInput, error) {
	if in.Index < 1 {
		return in, fmt.Errorf("bind index %d: indices are 1-based", in.Index)
	}
	switch in.Kind {
	case KindInt8:
		if _, ok := in.Value.(int8); !ok {
			return in, fmt.Errorf("bind index %d: value is %T, want int8", in.Index, in.Value)
		}
	case KindUint8:
		if _, ok := in.Value.(uint8); !ok {
			return in, fmt.Errorf("bind index %d: value is %T, want uint8", in.Index, in.Value)
		}
	case KindInt64:
		switch v := in.Value.(type) {
		case int64:
		case int:
			in.Value = int64(v)
		case int32:
			in.Value = int64(v)
		default:
			return in, fmt.Errorf("bind index %d: value is %T, want int64", in.Index, in.Value)
		}
	case KindUint64:
		switch v := in.Value.(type) {
		case uint64:
		case uint:
			in.Value = uint64(v)
		case uint32:
			in.Value = uint64(v)
		default:
			return in, fmt.Errorf("bind index %d: value is %T, want uint64", in.Index, in.Value)
		}
	case KindFloat64:
		switch v := in.Value.(type) {
		case float64:
		case float32:
			in.Value = float64(v)
		default:
			return in, fmt.Errorf("bind index %d: value is %T, want float64", in.Index, in.Value)
		}
	case KindBoolean:
		if _, ok := in.Value.(bool); !ok {
			return in, fmt.Errorf("bind index %d: value is %T, want bool", in.Index, in.Value)
		}
	case KindString, KindTimestamp:
		switch v := in.Value.(type) {
		case string:
		case []byte:
			in.Value = string(v)
		default:
			return in, fmt.Errorf("bind index %d: value is %T, want string", in.Index, in.Value)
		}
	default:
		return in, fmt.Errorf("bind index %d: unknown kind %s", in.Index, in.Kind)
	}
	return in, nil
}

// validateBindOutput checks that the destination pointer matches the declared
// kind. Kind and column compatibility is checked later, at fetch time.
func validateBindOutput(out BindOutput) error {
	if out.Index < 1 {
		return fmt.Errorf("output index %d: indices are 1-based", out.Index)
	}
	if out.Value == nil {
		return fmt.Errorf("output index %d: nil destination", out.Index)
	}
	var ok bool
	switch out.Kind {
	case KindInt8:
		_, ok = out.Value.(*int8)
	case KindUint8:
		_, ok = out.Value.(*uint8)
	case KindInt64:
		_, ok = out.Value.(*int64)
	case KindUint64:
		_, ok = out.Value.(*uint64)
	case KindFloat64:
		_, ok = out.Value.(*float64)
	case KindString:
		_, ok = out.Value.(*string)
	case KindTimestamp:
		_, ok = out.Value.(*time.Time)
	case KindBoolean:
		_, ok = out.Value.(*bool)
	default:
		return fmt.Errorf("output index %d: unknown kind %s", out.Index, out.Kind)
	}
	if !ok {
		return fmt.Errorf("output index %d: destination is %T, want pointer matching %s", out.Index, out.Value, out.Kind)
	}
	return nil
}
