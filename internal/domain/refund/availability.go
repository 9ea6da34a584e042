package refund

import (
	"github.com/mohbadar/pay-connector/internal/domain/charge"
)

// Availability is the external refund availability bucket for a charge.
type Availability string

const (
	AvailabilityPending     Availability = "pending"
	AvailabilityAvailable   Availability = "available"
	AvailabilityFull        Availability = "full"
	AvailabilityUnavailable Availability = "unavailable"
)

// AmountRefunded sums the amounts of every refund not in the error status.
// Refunds still in flight count, so a concurrent refund cannot overdraw the
// charge.
func AmountRefunded(refunds []*Refund) int64 {
	var total int64
	for _, r := range refunds {
		if r.Status != StatusError {
			total += r.Amount
		}
	}
	return total
}

// AmountAvailable returns how much of the charge can still be refunded.
func AmountAvailable(c *charge.Charge, refunds []*Refund) int64 {
	available := c.TotalAmount() - AmountRefunded(refunds)
	if available < 0 {
		return 0
	}
	return available
}

// CalculateAvailability derives the external refund availability from the
// charge's external status bucket and its refund history.
func CalculateAvailability(c *charge.Charge, refunds []*Refund) Availability {
	switch c.Status.External() {
	case charge.ExternalCreated, charge.ExternalStarted, charge.ExternalSubmitted:
		return AvailabilityPending
	case charge.ExternalSuccess:
		if AmountAvailable(c, refunds) > 0 {
			return AvailabilityAvailable
		}
		return AvailabilityFull
	default:
		return AvailabilityUnavailable
	}
}
