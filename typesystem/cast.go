package typesystem

// castRank orders the numeric-widening chain used by CanImplicitlyCast.
// Types outside this chain fall back to the identity/Unknown rules in
// CanImplicitlyCast.
var castRank = map[CanonicalType]int{
	Integer: 0,
	Float:   1,
	Numeric: 2,
}

// temporalWidening records the one-directional temporal widenings FlowScope
// accepts implicitly: a DATE or TIME can always be promoted to TIMESTAMP
// (the reverse truncates and is never implicit), mirroring ANSI SQL's own
// asymmetric treatment of these types.
var temporalWidening = map[CanonicalType]CanonicalType{
	Date: Timestamp,
	Time: Timestamp,
}

// CanImplicitlyCast reports whether a value of type `from` may be used
// where `to` is expected without an explicit CAST. The lattice is
// intentionally narrow:
//
//   - identity always holds (from == to)
//   - Unknown is the bottom element: it can stand in for anything, and
//     anything can stand in for it (an unresolved expression must not by
//     itself trigger TYPE_MISMATCH; confidence lives on the Issue instead)
//   - Integer -> Float -> Numeric widens one direction only
//   - Date/Time -> Timestamp widens one direction only
//
// Anything else (e.g. Text -> Integer, Boolean -> Numeric) is not an
// implicit cast, even though some dialects tolerate it at runtime: FlowScope
// flags the stricter case and lets a dialect-specific lint rule suppress it
// later if that proves too noisy in practice.
func CanImplicitlyCast(from, to CanonicalType) bool {
	if from == to {
		return true
	}
	if from == Unknown || to == Unknown {
		return true
	}
	if fr, fok := castRank[from]; fok {
		if tr, tok := castRank[to]; tok {
			return fr <= tr
		}
	}
	if widened, ok := temporalWidening[from]; ok && widened == to {
		return true
	}
	return false
}

// WidestCommonType returns the narrowest type both a and b can implicitly
// cast up to, used when unifying the two branches of a CASE expression or
// the two sides of a set operation. Returns (Unknown, false) when no common
// type exists in the lattice.
func WidestCommonType(a, b CanonicalType) (CanonicalType, bool) {
	if a == b {
		return a, true
	}
	if a == Unknown {
		return b, true
	}
	if b == Unknown {
		return a, true
	}
	if CanImplicitlyCast(a, b) {
		return b, true
	}
	if CanImplicitlyCast(b, a) {
		return a, true
	}
	return Unknown, false
}
