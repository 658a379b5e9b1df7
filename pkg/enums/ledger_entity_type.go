package enums

import "fmt"

// LedgerEntityType names the kind of entity a ledger event describes.
type LedgerEntityType string

const (
	LedgerEntityInventory LedgerEntityType = "INVENTORY"
	LedgerEntityOrder     LedgerEntityType = "ORDER"
	LedgerEntityShipment  LedgerEntityType = "SHIPMENT"
	LedgerEntityLibrary   LedgerEntityType = "LIBRARY"
)

var validLedgerEntityTypes = []LedgerEntityType{
	LedgerEntityInventory,
	LedgerEntityOrder,
	LedgerEntityShipment,
	LedgerEntityLibrary,
}

// String implements fmt.Stringer.
func (t LedgerEntityType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known LedgerEntityType.
func (t LedgerEntityType) IsValid() bool {
	for _, candidate := range validLedgerEntityTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerEntityType converts raw input into a LedgerEntityType.
func ParseLedgerEntityType(value string) (LedgerEntityType, error) {
	for _, candidate := range validLedgerEntityTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entity type %q", value)
}
