package notifierhost

import "fmt"

type ItemStatus string

// StatusNotifierItem statuses.
const (
	// The item doesn't convey important information to the user, it can be
	// considered an "idle" status and is likely that visualizations will choose
	// to hide it.
	ItemStatusPassive ItemStatus = "Passive"

	// The item is active, is more important that the item will be shown in some
	// way to the user.
	ItemStatusActive ItemStatus = "Active"

	// The item carries really important information for the user, such as battery
	// charge running out and is wants to incentive the direct user intervention.
	// Visualizations should emphasize in some way the items with NeedsAttention
	// status.
	ItemStatusNeedsAttention ItemStatus = "NeedsAttention"
)

// InvalidStatusError is returned by [ParseItemStatus] for a status
// string outside the enumeration. It is distinct from transport errors,
// so callers can tell "the item did not answer" from "the item answered
// nonsense" and choose to log rather than drop the item.
type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid status %q", e.Value)
}

// ParseItemStatus parses the value of the Status property.
//
// Matching is exact: the protocol defines a closed set of values and an
// unknown one is reported as [InvalidStatusError], never coerced to a
// default.
func ParseItemStatus(s string) (ItemStatus, error) {
	switch s {
	case "Passive":
		return ItemStatusPassive, nil
	case "Active":
		return ItemStatusActive, nil
	case "NeedsAttention":
		return ItemStatusNeedsAttention, nil
	default:
		return "", &InvalidStatusError{Value: s}
	}
}
