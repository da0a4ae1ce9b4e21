package enums

import "fmt"

// NotificationKind classifies persisted notifications.
type NotificationKind string

const (
	NotificationOrderPaid     NotificationKind = "order_paid"
	NotificationNewSale       NotificationKind = "new_sale"
	NotificationPayoutDecided NotificationKind = "payout_decided"
)

var validNotificationKinds = []NotificationKind{
	NotificationOrderPaid,
	NotificationNewSale,
	NotificationPayoutDecided,
}

// String implements fmt.Stringer.
func (n NotificationKind) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationKind.
func (n NotificationKind) IsValid() bool {
	for _, candidate := range validNotificationKinds {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationKind converts raw input into a NotificationKind.
func ParseNotificationKind(value string) (NotificationKind, error) {
	for _, candidate := range validNotificationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification kind %q", value)
}
