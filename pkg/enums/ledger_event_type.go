package enums

// LedgerEventType is the open-ended tag describing what happened to an
// entity. The replay engine skips tags it does not recognize, so new tags
// can be introduced without breaking historical replays.
type LedgerEventType string

const (
	// Inventory events.
	LedgerEventReserved  LedgerEventType = "RESERVED"
	LedgerEventCommitted LedgerEventType = "COMMITTED"
	LedgerEventReleased  LedgerEventType = "RELEASED"
	LedgerEventRestocked LedgerEventType = "RESTOCKED"

	// Order events.
	LedgerEventCreated  LedgerEventType = "CREATED"
	LedgerEventPaid     LedgerEventType = "PAID"
	LedgerEventFailed   LedgerEventType = "FAILED"
	LedgerEventRefunded LedgerEventType = "REFUNDED"

	// Library events.
	LedgerEventGranted LedgerEventType = "GRANTED"
	LedgerEventRevoked LedgerEventType = "REVOKED"
)

// String implements fmt.Stringer.
func (t LedgerEventType) String() string {
	return string(t)
}
