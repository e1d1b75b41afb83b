package boreal

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestSQLTypeNames(t *testing.T) {
	require.Equal(t, "TIMESTAMP_LTZ", TypeTimestampLTZ.String())
	require.Equal(t, "FIXED", TypeFixed.String())

	// Result metadata spells types lowercase, bindings uppercase.
	for typ, name := range sqlTypeNames {
		got, ok := sqlTypeFromString(strings.ToLower(name))
		require.True(t, ok, name)
		require.Equal(t, typ, got)

		got, ok = sqlTypeFromString(name)
		require.True(t, ok, name)
		require.Equal(t, typ, got)
	}

	_, ok := sqlTypeFromString("geography")
	require.False(t, ok)
}

func TestDefaultNativeKind(t *testing.T) {
	tests := []struct {
		typ   SQLType
		scale int64
		want  NativeKind
	}{
		{TypeFixed, 0, KindInt64},
		{TypeFixed, 2, KindFloat64},
		{TypeReal, 0, KindFloat64},
		{TypeBoolean, 0, KindInt8},
		{TypeTimestampLTZ, 0, KindTimestamp},
		{TypeTimestampNTZ, 0, KindTimestamp},
		{TypeTimestampTZ, 9, KindTimestamp},
		{TypeText, 0, KindString},
		{TypeDate, 0, KindString},
		{TypeTime, 0, KindString},
		{TypeBinary, 0, KindString},
		{TypeVariant, 0, KindString},
		{TypeObject, 0, KindString},
		{TypeArray, 0, KindString},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, defaultNativeKind(tc.typ, tc.scale),
			"%s scale %d", tc.typ, tc.scale)
	}
}

func TestBindSQLType(t *testing.T) {
	tests := []struct {
		kind NativeKind
		want SQLType
	}{
		{KindInt8, TypeFixed},
		{KindUint8, TypeFixed},
		{KindInt64, TypeFixed},
		{KindUint64, TypeFixed},
		{KindFloat64, TypeReal},
		{KindBoolean, TypeBoolean},
		{KindTimestamp, TypeTimestampNTZ},
		{KindString, TypeText},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, bindSQLType(tc.kind), tc.kind.String())
	}
}

func TestBindParamValue(t *testing.T) {
	tests := []struct {
		name string
		in   BindInput
		want string
	}{
		{"int8", BindInput{Index: 1, Kind: KindInt8, Value: int8(-3)}, "-3"},
		{"uint8", BindInput{Index: 1, Kind: KindUint8, Value: uint8(200)}, "200"},
		{"int64", BindInput{Index: 1, Kind: KindInt64, Value: int64(-9001)}, "-9001"},
		{"uint64", BindInput{Index: 1, Kind: KindUint64, Value: uint64(math.MaxUint64)}, "18446744073709551615"},
		{"float64", BindInput{Index: 1, Kind: KindFloat64, Value: 2.5}, "2.5"},
		{"boolean", BindInput{Index: 1, Kind: KindBoolean, Value: true}, "true"},
		{"string", BindInput{Index: 1, Kind: KindString, Value: "O'Brien"}, "O'Brien"},
		{"timestamp", BindInput{Index: 1, Kind: KindTimestamp, Value: "2024-01-02 03:04:05"}, "2024-01-02 03:04:05"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := bindParamValue(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	t.Run("wrong dynamic type", func(t *testing.T) {
		_, err := bindParamValue(BindInput{Index: 2, Kind: KindInt64, Value: "42"})
		require.Error(t, err)
		require.Contains(t, err.Error(), "want int64")
	})
}

func TestParseWireNumbers(t *testing.T) {
	require.Equal(t, int64(42), parseWireInt("42"))
	require.Equal(t, int64(-7), parseWireInt("-7"))
	require.Equal(t, int64(0), parseWireInt("not a number"))
	require.Equal(t, int64(0), parseWireInt(""))
	// Overflow saturates instead of falling back to zero.
	require.Equal(t, int64(math.MaxInt64), parseWireInt("9223372036854775808"))
	require.Equal(t, int64(math.MinInt64), parseWireInt("-9223372036854775809"))

	require.Equal(t, uint64(42), parseWireUint("42"))
	require.Equal(t, uint64(0), parseWireUint("junk"))
	require.Equal(t, uint64(math.MaxUint64), parseWireUint("18446744073709551616"))

	require.Equal(t, 2.5, parseWireFloat("2.5"))
	require.Equal(t, float64(0), parseWireFloat("junk"))
	require.Equal(t, math.Inf(1), parseWireFloat("1e999"))
}

func TestWriteFetchValue(t *testing.T) {
	fixedCol := ColumnDescriptor{Index: 1, Name: "N", Type: TypeFixed, NativeKind: KindInt64}
	realCol := ColumnDescriptor{Index: 1, Name: "R", Type: TypeReal, NativeKind: KindFloat64}
	textCol := ColumnDescriptor{Index: 1, Name: "S", Type: TypeText, NativeKind: KindString}
	boolCol := ColumnDescriptor{Index: 1, Name: "B", Type: TypeBoolean, NativeKind: KindInt8}

	field := func(raw string) gjson.Result { return gjson.Parse(raw) }

	t.Run("int64", func(t *testing.T) {
		var v int64
		out := BindOutput{Index: 1, Kind: KindInt64, Value: &v}
		require.NoError(t, writeFetchValue(out, field(`"123"`), fixedCol))
		require.Equal(t, int64(123), v)

		require.NoError(t, writeFetchValue(out, gjson.Result{}, fixedCol))
		require.Equal(t, int64(0), v, "null writes the zero value")
	})

	t.Run("uint64", func(t *testing.T) {
		var v uint64
		out := BindOutput{Index: 1, Kind: KindUint64, Value: &v}
		require.NoError(t, writeFetchValue(out, field(`"18446744073709551615"`), fixedCol))
		require.Equal(t, uint64(math.MaxUint64), v)
	})

	t.Run("float64", func(t *testing.T) {
		var v float64
		out := BindOutput{Index: 1, Kind: KindFloat64, Value: &v}
		require.NoError(t, writeFetchValue(out, field(`"1.25"`), realCol))
		require.Equal(t, 1.25, v)
	})

	t.Run("boolean column into int8", func(t *testing.T) {
		var v int8
		out := BindOutput{Index: 1, Kind: KindInt8, Value: &v}
		require.NoError(t, writeFetchValue(out, field(`true`), boolCol))
		require.Equal(t, int8(1), v)
		require.NoError(t, writeFetchValue(out, field(`false`), boolCol))
		require.Equal(t, int8(0), v)
	})

	t.Run("int8 from a non-boolean column takes the first byte", func(t *testing.T) {
		var v int8
		out := BindOutput{Index: 1, Kind: KindInt8, Value: &v}
		require.NoError(t, writeFetchValue(out, field(`"A1"`), textCol))
		require.Equal(t, int8('A'), v)
	})

	t.Run("string", func(t *testing.T) {
		var v string
		n := -1
		out := BindOutput{Index: 1, Kind: KindString, Value: &v, Len: &n}
		require.NoError(t, writeFetchValue(out, field(`"borealis"`), textCol))
		require.Equal(t, "borealis", v)
		require.Equal(t, 8, n)

		require.NoError(t, writeFetchValue(out, gjson.Result{}, textCol))
		require.Equal(t, "", v)
		require.Equal(t, 0, n)
	})

	t.Run("string truncated at MaxLength", func(t *testing.T) {
		var v string
		n := -1
		out := BindOutput{Index: 1, Kind: KindString, Value: &v, MaxLength: 4, Len: &n}
		require.NoError(t, writeFetchValue(out, field(`"borealis"`), textCol))
		require.Equal(t, "bore", v)
		require.Equal(t, 4, n)
	})

	t.Run("any column reads as string", func(t *testing.T) {
		var v string
		out := BindOutput{Index: 1, Kind: KindString, Value: &v}
		require.NoError(t, writeFetchValue(out, field(`"42"`), fixedCol))
		require.Equal(t, "42", v)
	})

	t.Run("mismatched destination pointer", func(t *testing.T) {
		var v int32
		out := BindOutput{Index: 1, Kind: KindInt64, Value: &v}
		err := writeFetchValue(out, field(`"5"`), fixedCol)
		require.Error(t, err)
		require.Contains(t, err.Error(), "want *int64")
	})
}
