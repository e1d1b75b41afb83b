package boreal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

// SQLType is the warehouse-side column type, as declared in result metadata
// and in serialized statement bindings.
type SQLType int

const (
	TypeFixed SQLType = iota
	TypeReal
	TypeText
	TypeDate
	TypeTime
	TypeTimestampLTZ
	TypeTimestampNTZ
	TypeTimestampTZ
	TypeVariant
	TypeObject
	TypeArray
	TypeBinary
	TypeBoolean
)

var sqlTypeNames = map[SQLType]string{
	TypeFixed:        "FIXED",
	TypeReal:         "REAL",
	TypeText:         "TEXT",
	TypeDate:         "DATE",
	TypeTime:         "TIME",
	TypeTimestampLTZ: "TIMESTAMP_LTZ",
	TypeTimestampNTZ: "TIMESTAMP_NTZ",
	TypeTimestampTZ:  "TIMESTAMP_TZ",
	TypeVariant:      "VARIANT",
	TypeObject:       "OBJECT",
	TypeArray:        "ARRAY",
	TypeBinary:       "BINARY",
	TypeBoolean:      "BOOLEAN",
}

var sqlTypesByName = lo.Invert(sqlTypeNames)

// String returns the wire name used when serializing bindings. Result
// metadata sends the same names lowercased.
func (t SQLType) String() string {
	if name, ok := sqlTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("SQLType(%d)", int(t))
}

func sqlTypeFromString(s string) (SQLType, bool) {
	t, ok := sqlTypesByName[strings.ToUpper(s)]
	return t, ok
}

// NativeKind tags the native representation carried by a binding.
type NativeKind int

const (
	KindInt8 NativeKind = iota
	KindUint8
	KindInt64
	KindUint64
	KindFloat64
	KindString
	KindTimestamp
	KindBoolean
)

var nativeKindNames = map[NativeKind]string{
	KindInt8:      "INT8",
	KindUint8:     "UINT8",
	KindInt64:     "INT64",
	KindUint64:    "UINT64",
	KindFloat64:   "FLOAT64",
	KindString:    "STRING",
	KindTimestamp: "TIMESTAMP",
	KindBoolean:   "BOOLEAN",
}

func (k NativeKind) String() string {
	if name, ok := nativeKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("NativeKind(%d)", int(k))
}

// ColumnDescriptor describes one result column: the server-declared metadata
// plus the native kind fetch recommends for it.
type ColumnDescriptor struct {
	Index      int // 1-based ordinal
	Name       string
	Type       SQLType
	NativeKind NativeKind
	Precision  int64
	Scale      int64
	Length     int64
	Nullable   bool
}

// defaultNativeKind picks the recommended native kind for a column type.
// Temporal and semi-structured types without a dedicated native
// representation pass through as their wire string form.
func defaultNativeKind(t SQLType, scale int64) NativeKind {
	switch t {
	case TypeFixed:
		if scale > 0 {
			return KindFloat64
		}
		return KindInt64
	case TypeReal:
		return KindFloat64
	case TypeBoolean:
		return KindInt8
	case TypeTimestampLTZ, TypeTimestampNTZ, TypeTimestampTZ:
		return KindTimestamp
	default:
		return KindString
	}
}

// bindSQLType maps an input binding kind to the SQL type name serialized
// alongside its value.
func bindSQLType(k NativeKind) SQLType {
	switch k {
	case KindInt8, KindUint8, KindInt64, KindUint64:
		return TypeFixed
	case KindFloat64:
		return TypeReal
	case KindBoolean:
		return TypeBoolean
	case KindTimestamp:
		return TypeTimestampNTZ
	default:
		return TypeText
	}
}

// bindParamValue renders a bound input into its wire string. The value has
// already been normalized to its kind's canonical type at bind time.
func bindParamValue(in BindInput) (string, error) {
	switch in.Kind {
	case KindInt8:
		v, ok := in.Value.(int8)
		if !ok {
			return "", fmt.Errorf("bind at index %d: value is %T, want int8", in.Index, in.Value)
		}
		return strconv.FormatInt(int64(v), 10), nil
	case KindUint8:
		v, ok := in.Value.(uint8)
		if !ok {
			return "", fmt.Errorf("bind at index %d: value is %T, want uint8", in.Index, in.Value)
		}
		return strconv.FormatUint(uint64(v), 10), nil
	case KindInt64:
		v, ok := in.Value.(int64)
		if !ok {
			return "", fmt.Errorf("bind at index %d: value is %T, want int64", in.Index, in.Value)
		}
		return strconv.FormatInt(v, 10), nil
	case KindUint64:
		v, ok := in.Value.(uint64)
		if !ok {
			return "", fmt.Errorf("bind at index %d: value is %T, want uint64", in.Index, in.Value)
		}
		return strconv.FormatUint(v, 10), nil
	case KindFloat64:
		v, ok := in.Value.(float64)
		if !ok {
			return "", fmt.Errorf("bind at index %d: value is %T, want float64", in.Index, in.Value)
		}
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case KindBoolean:
		v, ok := in.Value.(bool)
		if !ok {
			return "", fmt.Errorf("bind at index %d: value is %T, want bool", in.Index, in.Value)
		}
		return strconv.FormatBool(v), nil
	case KindString, KindTimestamp:
		v, ok := in.Value.(string)
		if !ok {
			return "", fmt.Errorf("bind at index %d: value is %T, want string", in.Index, in.Value)
		}
		return v, nil
	default:
		return "", fmt.Errorf("bind at index %d: kind %s cannot be serialized", in.Index, in.Kind)
	}
}

// parseWireInt parses a wire string as a base-10 int64, keeping the saturated
// bound on range overflow and yielding 0 when the string holds no integer.
func parseWireInt(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return n
	}
	var numErr *strconv.NumError
	if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
		return n
	}
	return 0
}

func parseWireUint(s string) uint64 {
	n, err := strconv.ParseUint(s, 10, 64)
	if err == nil {
		return n
	}
	var numErr *strconv.NumError
	if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
		return n
	}
	return 0
}

func parseWireFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err == nil {
		return f
	}
	var numErr *strconv.NumError
	if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
		return f
	}
	return 0
}

func firstByte(s string) byte {
	if s == "" {
		return 0
	}
	return s[0]
}

// writeFetchValue converts one field of a dequeued row into the bound output.
// SQL NULL writes the kind's zero value and a length of 0.
func writeFetchValue(out BindOutput, col gjson.Result, desc ColumnDescriptor) error {
	isNull := col.Type == gjson.Null

	switch out.Kind {
	case KindInt8:
		dest, ok := out.Value.(*int8)
		if !ok {
			return fmt.Errorf("output at index %d: value is %T, want *int8", out.Index, out.Value)
		}
		switch {
		case isNull:
			*dest = 0
		case desc.Type == TypeBoolean:
			if col.Type == gjson.True {
				*dest = 1
			} else {
				*dest = 0
			}
		default:
			*dest = int8(firstByte(col.String()))
		}
	case KindUint8:
		dest, ok := out.Value.(*uint8)
		if !ok {
			return fmt.Errorf("output at index %d: value is %T, want *uint8", out.Index, out.Value)
		}
		if isNull {
			*dest = 0
		} else {
			*dest = firstByte(col.String())
		}
	case KindInt64:
		dest, ok := out.Value.(*int64)
		if !ok {
			return fmt.Errorf("output at index %d: value is %T, want *int64", out.Index, out.Value)
		}
		if isNull {
			*dest = 0
		} else {
			*dest = parseWireInt(col.String())
		}
	case KindUint64:
		dest, ok := out.Value.(*uint64)
		if !ok {
			return fmt.Errorf("output at index %d: value is %T, want *uint64", out.Index, out.Value)
		}
		if isNull {
			*dest = 0
		} else {
			*dest = parseWireUint(col.String())
		}
	case KindFloat64:
		dest, ok := out.Value.(*float64)
		if !ok {
			return fmt.Errorf("output at index %d: value is %T, want *float64", out.Index, out.Value)
		}
		if isNull {
			*dest = 0
		} else {
			*dest = parseWireFloat(col.String())
		}
	case KindString:
		dest, ok := out.Value.(*string)
		if !ok {
			return fmt.Errorf("output at index %d: value is %T, want *string", out.Index, out.Value)
		}
		s := ""
		if !isNull {
			s = col.String()
			if out.MaxLength > 0 && len(s) > out.MaxLength {
				s = s[:out.MaxLength]
			}
		}
		*dest = s
		if out.Len != nil {
			*out.Len = len(s)
		}
	case KindTimestamp:
		// TODO: structured timestamp conversion. Until then the wire string
		// is reachable through a STRING binding; this kind writes nothing.
	default:
		return fmt.Errorf("output at index %d: kind %s cannot receive a fetched value", out.Index, out.Kind)
	}
	return nil
}
