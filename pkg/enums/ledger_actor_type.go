package enums

import "fmt"

// LedgerActorType records who triggered a ledger event.
type LedgerActorType string

const (
	LedgerActorUser   LedgerActorType = "USER"
	LedgerActorAdmin  LedgerActorType = "ADMIN"
	LedgerActorSystem LedgerActorType = "SYSTEM"
)

var validLedgerActorTypes = []LedgerActorType{
	LedgerActorUser,
	LedgerActorAdmin,
	LedgerActorSystem,
}

// String implements fmt.Stringer.
func (t LedgerActorType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known LedgerActorType.
func (t LedgerActorType) IsValid() bool {
	for _, candidate := range validLedgerActorTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerActorType converts raw input into a LedgerActorType.
func ParseLedgerActorType(value string) (LedgerActorType, error) {
	for _, candidate := range validLedgerActorTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger actor type %q", value)
}
