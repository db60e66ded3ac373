package service

import (
	"hedgelink/internal/correlation"
	"hedgelink/internal/dedup"
	"hedgelink/internal/ledger"
	"hedgelink/internal/mirror"
	"hedgelink/internal/obs"
)

// State owns every mutable reconciliation structure. It is created
// with the service and torn down with it, so tests get deterministic
// setup instead of ambient process-wide maps.
type State struct {
	Ledger   *ledger.Ledger
	Registry *correlation.Registry
	Guard    *dedup.Guard
	InFlight *mirror.InFlight
	Metrics  *obs.Metrics
}

// NewState creates an empty reconciliation state.
func NewState() *State {
	return &State{
		Ledger:   ledger.NewLedger(),
		Registry: correlation.NewRegistry(),
		Guard:    dedup.NewGuard(),
		InFlight: mirror.NewInFlight(),
		Metrics:  obs.NewMetrics(),
	}
}
