package events

import "time"

// Event is the lifecycle-bearing entity managed by the back office.
type Event struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Location        string     `json:"location"`
	CoverImage      *string    `json:"coverImage,omitempty"`
	ScheduledDate   *time.Time `json:"eventDate,omitempty"`
	ScheduledTime   string     `json:"eventTime"`
	DurationMinutes *int       `json:"duration,omitempty"`
	CategoryID      int64      `json:"categoryId"`
	OwnerID         int64      `json:"createdById"`
	Status          Status     `json:"status"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	ApproverID      *int64     `json:"approvedById,omitempty"`
	IsActive        bool       `json:"isActive"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	UpdatedBy       *int64     `json:"updatedById,omitempty"`

	CategoryName string       `json:"categoryName,omitempty"`
	OwnerName    string       `json:"createdByName,omitempty"`
	TicketTypes  []TicketType `json:"ticketTypes,omitempty"`
}

// TicketType is a priced ticket tier sold for an event.
type TicketType struct {
	ID             int64     `json:"id"`
	EventID        int64     `json:"eventId"`
	Name           string    `json:"name"`
	Description    *string   `json:"description,omitempty"`
	Price          float64   `json:"price"`
	Quantity       int       `json:"quantity"`
	QuantityBooked int       `json:"quantityBooked"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Available returns the number of unsold tickets.
func (t TicketType) Available() int {
	if t.QuantityBooked >= t.Quantity {
		return 0
	}
	return t.Quantity - t.QuantityBooked
}

// StatusChange is one row of an event's status history.
type StatusChange struct {
	ID        int64     `json:"id"`
	EventID   int64     `json:"eventId"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	ActorID   *int64    `json:"actorId,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	ChangedAt time.Time `json:"changedAt"`
}
