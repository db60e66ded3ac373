// Package mirror applies remote-initiated closures to the local
// account: it decides whether a closure should be mirrored, resolves
// which position it targets, and places exactly one closing order.
package mirror

import "strings"

// ReasonPolicy decides whether a remote closure reason should produce
// a local closing order. Codes the policy does not recognize default
// to mirroring, which keeps the two venues synchronized when the venue
// introduces new codes.
type ReasonPolicy interface {
	ShouldMirror(reason string) bool
}

// TablePolicy is a ReasonPolicy backed by a never-mirror set. Reasons
// are compared case-insensitively.
type TablePolicy struct {
	neverMirror map[string]struct{}
}

// NewTablePolicy builds a policy from a list of never-mirror codes.
func NewTablePolicy(neverMirror []string) *TablePolicy {
	set := make(map[string]struct{}, len(neverMirror))
	for _, reason := range neverMirror {
		set[strings.ToUpper(reason)] = struct{}{}
	}
	return &TablePolicy{neverMirror: set}
}

// DefaultNeverMirrorReasons lists the venue's internal adjustment
// codes. Mirroring these would close local positions the venue never
// meant to touch and trigger further remote reactions.
func DefaultNeverMirrorReasons() []string {
	return []string{
		"EA_ADJUSTMENT_CLOSE",
		"EA_INTERNAL_REBALANCE",
		"EA_PARALLEL_ARRAY_CLOSE",
		"EA_COMMENT_BASED_CLOSE",
		"EA_RECONCILED_AND_CLOSED",
		"EA_PARALLEL_ARRAY_ORPHAN_CLOSE",
		"EA_COMMENT_ORPHAN_CLOSE",
		"EA_OLD_MAP_FALLBACK_CLOSE",
		"EA_GLOBALFUTURES_ZERO_CLOSE",
		"EA_TRAILING_STOP_CLOSE",
		"ELASTIC_PARTIAL_CLOSE",
		"NT_ORIGINAL_TRADE_CLOSED",
	}
}

// DefaultPolicy returns a table policy loaded with the default
// never-mirror set.
func DefaultPolicy() *TablePolicy {
	return NewTablePolicy(DefaultNeverMirrorReasons())
}

// ShouldMirror reports whether a closure with this reason is mirrored.
// An empty reason mirrors for backward compatibility with venues that
// never send one.
func (p *TablePolicy) ShouldMirror(reason string) bool {
	if reason == "" {
		return true
	}
	_, never := p.neverMirror[strings.ToUpper(reason)]
	return !never
}
