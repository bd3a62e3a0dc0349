// Package dump wraps k0kubun/pp for ad-hoc pretty-printing of analysis
// internals (lineage graphs, registries) during local debugging, gated the
// same way the rest of the module gates its logging: an environment
// variable, checked once.
package dump

import (
	"os"

	"github.com/k0kubun/pp/v3"
)

var enabled = os.Getenv("FLOWSCOPE_DEBUG") != ""

// Enabled reports whether FLOWSCOPE_DEBUG is set.
func Enabled() bool {
	return enabled
}

// Value pretty-prints v to stderr when dumping is enabled; it is a no-op
// otherwise, so call sites can stay unconditional.
func Value(v any) {
	if !enabled {
		return
	}
	pp.Println(v)
}
