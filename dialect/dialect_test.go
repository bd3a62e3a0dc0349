package dialect

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeIdempotence(t *testing.T) {
	n := NewNormalizer(Postgres, DialectDefault)
	inputs := []string{"Users", `"Users"`, "USERS", "`backtick`"}
	for _, in := range inputs {
		once := n.Normalize(in)
		twice := n.Normalize(once)
		require.Equal(t, once, twice, "normalize not idempotent for %q", in)
	}
}

func TestNormalizeQuotedPreservesCase(t *testing.T) {
	n := NewNormalizer(Postgres, DialectDefault)
	require.Equal(t, "MixedCase", n.Normalize(`"MixedCase"`))
	require.Equal(t, "mixedcase", n.Normalize("MixedCase"))
}

func TestSnowflakeUpperFolds(t *testing.T) {
	n := NewNormalizer(Snowflake, DialectDefault)
	require.Equal(t, "ORDERS", n.Normalize("orders"))
}

func TestSplitQualifiedRespectsQuotes(t *testing.T) {
	parts := SplitQualified(`"a.b".c`)
	require.Len(t, parts, 2)
	require.Equal(t, `"a.b"`, parts[0])
	require.Equal(t, "c", parts[1])
}

func TestSplitQualifiedEmpty(t *testing.T) {
	require.Nil(t, SplitQualified(""))
}

func TestNormalizeQualifiedThreeParts(t *testing.T) {
	n := NewNormalizer(Generic, DialectDefault)
	require.Equal(t, "cat.schema.table", n.NormalizeQualified("Cat.Schema.Table"))
}
