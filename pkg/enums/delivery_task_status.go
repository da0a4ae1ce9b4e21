package enums

// DeliveryTaskStatus tracks a delivery task from creation to handoff.
type DeliveryTaskStatus string

const (
	DeliveryTaskStatusUnassigned DeliveryTaskStatus = "unassigned"
	DeliveryTaskStatusAssigned   DeliveryTaskStatus = "assigned"
	DeliveryTaskStatusInTransit  DeliveryTaskStatus = "in_transit"
	DeliveryTaskStatusDelivered  DeliveryTaskStatus = "delivered"
)

var validDeliveryTaskStatuses = []DeliveryTaskStatus{
	DeliveryTaskStatusUnassigned,
	DeliveryTaskStatusAssigned,
	DeliveryTaskStatusInTransit,
	DeliveryTaskStatusDelivered,
}

// String implements fmt.Stringer.
func (d DeliveryTaskStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryTaskStatus.
func (d DeliveryTaskStatus) IsValid() bool {
	for _, candidate := range validDeliveryTaskStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}
