package engine

// ManualActionKind enumerates the privileged, out-of-band actions an
// administrative channel could inject. None of these are implemented —
// they are documented extension points only. Risk/credit checks and
// reject/force-fill business logic are out of scope for the matching
// core itself.
type ManualActionKind uint8

const (
	// ManualReject would reject a live order without a counterparty.
	ManualReject ManualActionKind = iota
	// ManualForceFill would synthesize a fill at an administrator-supplied
	// price/quantity, bypassing normal crossing.
	ManualForceFill
)

// ManualAction describes a privileged action pending wiring to a real
// administrative command surface.
type ManualAction struct {
	Kind   ManualActionKind
	OID    int64
	Price  int64
	Volume int64
	Reason string
}

// ManualControl is an unimplemented hook for an administrative command
// channel. Perform is intentionally a no-op: the core has no business
// logic for reject/force-fill, and wiring one in is left to a future
// extension.
type ManualControl struct{}

// Perform is a stub. It does not mutate any book.
func (ManualControl) Perform(action ManualAction) error {
	return nil
}
