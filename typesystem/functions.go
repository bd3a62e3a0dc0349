package typesystem

import "strings"

// FunctionKind classifies how a function call interacts with grouping and
// row cardinality. The expression analyzer uses this to decide whether a
// reference inside the call is a direct column reference or forces a
// derived classification, and the lineage builder uses it to decide
// whether a projection item collapses many source rows into one.
type FunctionKind int

const (
	// ScalarFunction maps one input row to one output value, e.g. UPPER,
	// COALESCE, or a dialect date-arithmetic function.
	ScalarFunction FunctionKind = iota
	// AggregateFunction collapses a group of rows into one value, e.g.
	// SUM, COUNT, ARRAY_AGG.
	AggregateFunction
	// WindowFunction computes a value per row using a partition/order
	// context without collapsing rows, e.g. ROW_NUMBER, LAG.
	WindowFunction
	// TableGeneratingFunction expands into zero or more output rows per
	// input row, e.g. UNNEST or generate_series used in a FROM clause.
	TableGeneratingFunction
)

// functionSignature describes a known function's classification and return
// type. A nil ReturnType (zero value Unknown with ArgDependent true) means
// the return type mirrors one of its arguments (e.g. COALESCE, MIN, MAX)
// rather than being fixed.
type functionSignature struct {
	Kind        FunctionKind
	ReturnType  CanonicalType
	ArgDependent bool
}

// knownFunctions covers the ANSI-common core plus the handful of
// dialect-specific names exercised across the corpus. It is intentionally
// not exhaustive: an unrecognized name resolves to (ScalarFunction, Unknown)
// via InferFunctionReturnType/ClassifyFunction, which keeps the analyzer
// honest about not knowing rather than guessing.
var knownFunctions = map[string]functionSignature{
	"count":        {Kind: AggregateFunction, ReturnType: Integer},
	"sum":          {Kind: AggregateFunction, ArgDependent: true},
	"avg":          {Kind: AggregateFunction, ReturnType: Numeric},
	"min":          {Kind: AggregateFunction, ArgDependent: true},
	"max":          {Kind: AggregateFunction, ArgDependent: true},
	"array_agg":    {Kind: AggregateFunction, ReturnType: Array},
	"string_agg":   {Kind: AggregateFunction, ReturnType: Text},
	"group_concat": {Kind: AggregateFunction, ReturnType: Text},
	"json_agg":     {Kind: AggregateFunction, ReturnType: JSON},
	"listagg":      {Kind: AggregateFunction, ReturnType: Text},
	"bool_and":     {Kind: AggregateFunction, ReturnType: Boolean},
	"bool_or":      {Kind: AggregateFunction, ReturnType: Boolean},

	"row_number":   {Kind: WindowFunction, ReturnType: Integer},
	"rank":         {Kind: WindowFunction, ReturnType: Integer},
	"dense_rank":   {Kind: WindowFunction, ReturnType: Integer},
	"ntile":        {Kind: WindowFunction, ReturnType: Integer},
	"lag":          {Kind: WindowFunction, ArgDependent: true},
	"lead":         {Kind: WindowFunction, ArgDependent: true},
	"first_value":  {Kind: WindowFunction, ArgDependent: true},
	"last_value":   {Kind: WindowFunction, ArgDependent: true},
	"percent_rank": {Kind: WindowFunction, ReturnType: Float},
	"cume_dist":    {Kind: WindowFunction, ReturnType: Float},

	"unnest":           {Kind: TableGeneratingFunction, ArgDependent: true},
	"generate_series":  {Kind: TableGeneratingFunction, ReturnType: Integer},
	"json_each":        {Kind: TableGeneratingFunction, ReturnType: JSON},
	"json_table":       {Kind: TableGeneratingFunction, ReturnType: JSON},
	"explode":          {Kind: TableGeneratingFunction, ArgDependent: true},
	"flatten":          {Kind: TableGeneratingFunction, ArgDependent: true},

	"coalesce":  {Kind: ScalarFunction, ArgDependent: true},
	"nullif":    {Kind: ScalarFunction, ArgDependent: true},
	"cast":      {Kind: ScalarFunction, ArgDependent: true},
	"upper":     {Kind: ScalarFunction, ReturnType: Text},
	"lower":     {Kind: ScalarFunction, ReturnType: Text},
	"trim":      {Kind: ScalarFunction, ReturnType: Text},
	"concat":    {Kind: ScalarFunction, ReturnType: Text},
	"substring": {Kind: ScalarFunction, ReturnType: Text},
	"replace":   {Kind: ScalarFunction, ReturnType: Text},
	"length":    {Kind: ScalarFunction, ReturnType: Integer},
	"abs":       {Kind: ScalarFunction, ArgDependent: true},
	"round":     {Kind: ScalarFunction, ArgDependent: true},
	"floor":     {Kind: ScalarFunction, ReturnType: Integer},
	"ceil":      {Kind: ScalarFunction, ReturnType: Integer},
	"now":       {Kind: ScalarFunction, ReturnType: Timestamp},
	"current_timestamp": {Kind: ScalarFunction, ReturnType: Timestamp},
	"current_date":      {Kind: ScalarFunction, ReturnType: Date},
	"date_trunc":        {Kind: ScalarFunction, ReturnType: Timestamp},
	"date_add":          {Kind: ScalarFunction, ReturnType: Timestamp},
	"date_diff":         {Kind: ScalarFunction, ReturnType: Integer},
	"extract":           {Kind: ScalarFunction, ReturnType: Numeric},
	"to_json":           {Kind: ScalarFunction, ReturnType: JSON},
	"to_char":           {Kind: ScalarFunction, ReturnType: Text},
	"md5":               {Kind: ScalarFunction, ReturnType: Text},
	"st_distance":       {Kind: ScalarFunction, ReturnType: Float},
}

func lookup(name string) (functionSignature, bool) {
	sig, ok := knownFunctions[strings.ToLower(name)]
	return sig, ok
}

// ClassifyFunction reports how a function name interacts with grouping and
// row cardinality. Unknown names are treated as ScalarFunction: the
// conservative default that neither forces a group-by requirement nor
// expands row cardinality.
func ClassifyFunction(name string) FunctionKind {
	sig, ok := lookup(name)
	if !ok {
		return ScalarFunction
	}
	return sig.Kind
}

// InferFunctionReturnType returns the function's fixed return type, or — for
// argument-dependent functions like COALESCE/MIN/MAX/SUM — folds argTypes
// down to their widest common type via WidestCommonType. Unknown function
// names, and argument-dependent functions called with zero arguments,
// return (Unknown, false).
func InferFunctionReturnType(name string, argTypes []CanonicalType) (CanonicalType, bool) {
	sig, ok := lookup(name)
	if !ok {
		return Unknown, false
	}
	if !sig.ArgDependent {
		return sig.ReturnType, true
	}
	if len(argTypes) == 0 {
		return Unknown, false
	}
	result := argTypes[0]
	for _, t := range argTypes[1:] {
		widened, ok := WidestCommonType(result, t)
		if !ok {
			return Unknown, false
		}
		result = widened
	}
	return result, true
}
