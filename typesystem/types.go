// Package typesystem implements FlowScope's canonical type lattice: the
// alias table that maps a dialect's spelled-out type name to one of a small
// closed set of canonical types, the implicit-cast lattice used by the
// expression analyzer's TYPE_MISMATCH check, and the function return-type
// and classification (aggregate/window/table-generating) rules consulted by
// both the expression analyzer and the lineage builder.
//
// The alias table is grounded on sqldef's schema/normalize.go, which
// carries the same "spelled-out type name -> canonical name" concern for a
// different purpose (diffing two DDL snapshots of the same table). We reuse
// the vocabulary, not the diffing.
package typesystem

import "strings"

// CanonicalType is the closed set of types FlowScope reasons about. Dialect
// type spellings (INT, INTEGER, VARCHAR, STRING, ...) are normalized down
// to one of these before any cast or comparison logic runs.
type CanonicalType int

const (
	Unknown CanonicalType = iota
	Integer
	Float
	Numeric
	Boolean
	Text
	Bytes
	Date
	Time
	Timestamp
	Interval
	Array
	Struct
	JSON
	Geometry
)

func (t CanonicalType) String() string {
	switch t {
	case Integer:
		return "INTEGER"
	case Float:
		return "FLOAT"
	case Numeric:
		return "NUMERIC"
	case Boolean:
		return "BOOLEAN"
	case Text:
		return "TEXT"
	case Bytes:
		return "BYTES"
	case Date:
		return "DATE"
	case Time:
		return "TIME"
	case Timestamp:
		return "TIMESTAMP"
	case Interval:
		return "INTERVAL"
	case Array:
		return "ARRAY"
	case Struct:
		return "STRUCT"
	case JSON:
		return "JSON"
	case Geometry:
		return "GEOMETRY"
	default:
		return "UNKNOWN"
	}
}

// aliases maps a lower-cased, whitespace-collapsed raw type spelling to its
// canonical type. It is intentionally large and flat rather than
// dialect-partitioned: FlowScope is a read-only static analyzer, so a
// generic alias accidentally also matching a different dialect's type name
// carries no real risk (unlike sqldef's schema-diff generator, which
// must never misclassify a type when deciding whether a column changed).
var aliases = map[string]CanonicalType{
	"int":              Integer,
	"int2":             Integer,
	"int4":             Integer,
	"int8":             Integer,
	"integer":          Integer,
	"smallint":         Integer,
	"bigint":           Integer,
	"tinyint":          Integer,
	"mediumint":        Integer,
	"serial":           Integer,
	"bigserial":        Integer,
	"smallserial":      Integer,
	"rowid":            Integer,
	"float":            Float,
	"float4":           Float,
	"float8":           Float,
	"real":             Float,
	"double":           Float,
	"double precision": Float,
	"binary_float":     Float,
	"binary_double":    Float,
	"decimal":          Numeric,
	"dec":              Numeric,
	"numeric":          Numeric,
	"number":           Numeric,
	"money":            Numeric,
	"smallmoney":       Numeric,
	"boolean":          Boolean,
	"bool":             Boolean,
	"bit":              Boolean,
	"char":             Text,
	"character":        Text,
	"varchar":          Text,
	"character varying": Text,
	"varchar2":         Text,
	"nchar":            Text,
	"nvarchar":         Text,
	"text":             Text,
	"string":           Text,
	"clob":             Text,
	"enum":             Text,
	"set":              Text,
	"uuid":             Text,
	"binary":           Bytes,
	"varbinary":        Bytes,
	"blob":             Bytes,
	"bytea":            Bytes,
	"bytes":            Bytes,
	"raw":              Bytes,
	"date":             Date,
	"time":             Time,
	"timetz":           Time,
	"time with time zone":    Time,
	"time without time zone": Time,
	"timestamp":               Timestamp,
	"timestamptz":             Timestamp,
	"timestamp with time zone":    Timestamp,
	"timestamp without time zone": Timestamp,
	"datetime":        Timestamp,
	"datetime2":       Timestamp,
	"smalldatetime":   Timestamp,
	"interval":        Interval,
	"array":           Array,
	"struct":          Struct,
	"record":          Struct,
	"row":             Struct,
	"json":            JSON,
	"jsonb":           JSON,
	"variant":         JSON,
	"object":          JSON,
	"geometry":        Geometry,
	"geography":       Geometry,
	"point":           Geometry,
}

// NormalizeTypeName maps a raw, dialect-spelled type name to a canonical
// type. Whitespace is collapsed and matching is case-insensitive so
// "TIMESTAMP WITH TIME ZONE" and "timestamp  with time zone" both resolve.
// Unrecognized spellings return (Unknown, false) so callers can distinguish
// "explicitly untyped" from "we don't know this spelling".
func NormalizeTypeName(raw string) (CanonicalType, bool) {
	key := normalizeKey(raw)
	// Strip a trailing parenthesized precision/scale or length, e.g.
	// "varchar(255)" or "numeric(10,2)".
	if idx := strings.IndexByte(key, '('); idx >= 0 {
		key = strings.TrimSpace(key[:idx])
	}
	t, ok := aliases[key]
	return t, ok
}

func normalizeKey(raw string) string {
	fields := strings.Fields(strings.ToLower(raw))
	return strings.Join(fields, " ")
}
