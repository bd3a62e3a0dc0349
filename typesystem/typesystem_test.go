package typesystem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeTypeNameAliases(t *testing.T) {
	cases := map[string]CanonicalType{
		"INT":                      Integer,
		"varchar(255)":             Text,
		"double precision":         Float,
		"TIMESTAMP WITH TIME ZONE": Timestamp,
		"numeric(10,2)":            Numeric,
		"jsonb":                    JSON,
	}
	for raw, want := range cases {
		got, ok := NormalizeTypeName(raw)
		require.True(t, ok, "NormalizeTypeName(%q): not recognized", raw)
		require.Equal(t, want, got, "NormalizeTypeName(%q)", raw)
	}
}

func TestNormalizeTypeNameUnknown(t *testing.T) {
	_, ok := NormalizeTypeName("frobnicate")
	require.False(t, ok, "expected unrecognized type spelling to report ok=false")
}

func TestCanImplicitlyCast(t *testing.T) {
	require.True(t, CanImplicitlyCast(Integer, Numeric), "expected Integer -> Numeric to widen")
	require.False(t, CanImplicitlyCast(Numeric, Integer), "expected Numeric -> Integer to NOT be implicit")
	require.True(t, CanImplicitlyCast(Date, Timestamp), "expected Date -> Timestamp to widen")
	require.False(t, CanImplicitlyCast(Timestamp, Date), "expected Timestamp -> Date to NOT be implicit")
	require.True(t, CanImplicitlyCast(Unknown, Text), "expected Unknown to be a bottom element")
	require.True(t, CanImplicitlyCast(Text, Unknown), "expected Unknown to be a bottom element both directions")
}

func TestWidestCommonType(t *testing.T) {
	got, ok := WidestCommonType(Integer, Float)
	require.True(t, ok)
	require.Equal(t, Float, got)

	_, ok = WidestCommonType(Boolean, Text)
	require.False(t, ok, "expected Boolean/Text to have no common type")
}

func TestClassifyFunction(t *testing.T) {
	require.Equal(t, AggregateFunction, ClassifyFunction("COUNT"))
	require.Equal(t, WindowFunction, ClassifyFunction("row_number"))
	require.Equal(t, TableGeneratingFunction, ClassifyFunction("unnest"))
	require.Equal(t, ScalarFunction, ClassifyFunction("some_unknown_udf"))
}

func TestInferFunctionReturnTypeArgDependent(t *testing.T) {
	got, ok := InferFunctionReturnType("coalesce", []CanonicalType{Integer, Float})
	require.True(t, ok)
	require.Equal(t, Float, got)

	_, ok = InferFunctionReturnType("coalesce", nil)
	require.False(t, ok, "expected zero-arg coalesce to report not ok")
}
