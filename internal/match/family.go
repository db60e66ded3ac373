// Package match resolves closures that arrive without a direct
// correlation mapping, and maps instrument symbols across venues.
package match

import "strings"

// Families maps a venue symbol to its local instrument root. The two
// venues name the same underlying differently, e.g. NAS100 trades
// locally as NQ futures.
type Families map[string]string

// DefaultFamilies covers the index CFDs the hedge venue quotes against
// their local futures roots.
func DefaultFamilies() Families {
	return Families{
		"NAS100": "NQ",
		"US100":  "NQ",
		"USTEC":  "NQ",
		"SPX":    "ES",
		"SPX500": "ES",
		"US500":  "ES",
		"US30":   "YM",
		"DJ30":   "YM",
		"GER40":  "FDAX",
		"XAUUSD": "GC",
		"USOIL":  "CL",
		"US2000": "RTY",
		"RUSS2K": "RTY",
	}
}

// Root strips the expiry from a local instrument name, "NQ 12-25"
// becomes "NQ".
func Root(instrument string) string {
	root, _, _ := strings.Cut(strings.TrimSpace(instrument), " ")
	return strings.ToUpper(root)
}

// Resolve returns the local root for a venue symbol. Symbols without a
// family entry map to themselves so same-named instruments still match.
func (f Families) Resolve(symbol string) string {
	key := strings.ToUpper(strings.TrimSpace(symbol))
	if root, ok := f[key]; ok {
		return root
	}
	return key
}

// SameFamily reports whether a local instrument and a venue symbol
// refer to the same underlying.
func (f Families) SameFamily(instrument, symbol string) bool {
	return Root(instrument) == f.Resolve(symbol)
}
