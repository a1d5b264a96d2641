package events

import "time"

// DefaultEventTime is applied when an event is created without a start time.
const DefaultEventTime = "18:00"

// CreateEventRequest is the payload for POST /events.
type CreateEventRequest struct {
	Title       string     `json:"title" validate:"required,min=3,max=200"`
	Description string     `json:"description" validate:"required,min=10,max=3000"`
	CategoryID  int64      `json:"categoryId" validate:"required,gt=0"`
	Location    string     `json:"location" validate:"required,min=3,max=200"`
	EventDate   *time.Time `json:"eventDate"`
	EventTime   string     `json:"eventTime" validate:"omitempty,datetime=15:04"`
	Duration    *int       `json:"duration" validate:"omitempty,gt=0"`
	CoverImage  *string    `json:"coverImage" validate:"omitempty,url"`
}

// UpdateEventRequest is the payload for PUT /events/{id}. Status is changed
// only through the status endpoint.
type UpdateEventRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=3,max=200"`
	Description *string    `json:"description" validate:"omitempty,min=10,max=3000"`
	CategoryID  *int64     `json:"categoryId" validate:"omitempty,gt=0"`
	Location    *string    `json:"location" validate:"omitempty,min=3,max=200"`
	EventDate   *time.Time `json:"eventDate"`
	EventTime   *string    `json:"eventTime" validate:"omitempty,datetime=15:04"`
	Duration    *int       `json:"duration" validate:"omitempty,gt=0"`
	CoverImage  *string    `json:"coverImage" validate:"omitempty,url"`
}

// ChangeStatusRequest is the payload for PATCH /events/{id}/status.
type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}

// BulkDeleteRequest is the payload for POST /events/bulk-delete.
type BulkDeleteRequest struct {
	EventIDs []int64 `json:"eventIds" validate:"required,min=1,max=100,dive,gt=0"`
}

// ListFilter narrows event listings.
type ListFilter struct {
	Page       int
	Limit      int
	Search     string
	Status     *Status
	CategoryID *int64
	OwnerID    *int64
	Sort       string
	Order      string
}

// Sort keys accepted by List.
var sortColumns = map[string]string{
	"createdAt": "e.created_at",
	"eventDate": "e.scheduled_date",
	"title":     "e.title",
}

// CreateTicketTypeRequest is the payload for POST /events/{id}/tickets.
type CreateTicketTypeRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Price       float64 `json:"price" validate:"gt=0"`
	Quantity    int     `json:"quantity" validate:"gt=0"`
}

// UpdateTicketTypeRequest is the payload for PUT /events/{id}/tickets/{ticketID}.
type UpdateTicketTypeRequest struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string  `json:"description" validate:"omitempty,max=500"`
	Price       *float64 `json:"price" validate:"omitempty,gt=0"`
	Quantity    *int     `json:"quantity" validate:"omitempty,gt=0"`
}
