package sales

import "time"

// Filter narrows the sales report. Zero values mean no restriction.
type Filter struct {
	EventID    *int64
	CategoryID *int64
	DateFrom   *time.Time
	DateTo     *time.Time
	Status     string
}

// Summary aggregates bookings over every matching event.
type Summary struct {
	TotalEvents       int     `json:"totalEvents"`
	TotalRevenue      float64 `json:"totalRevenue"`
	TotalBookings     int     `json:"totalBookings"`
	ConfirmedBookings int     `json:"confirmedBookings"`
	CancelledBookings int     `json:"cancelledBookings"`
	ConversionRate    float64 `json:"conversionRate"`
}

// EventStat holds per event booking figures. Revenue counts confirmed bookings only.
type EventStat struct {
	EventID           int64      `json:"eventId"`
	EventTitle        string     `json:"eventTitle"`
	Category          string     `json:"category"`
	EventDate         *time.Time `json:"eventDate,omitempty"`
	Status            string     `json:"status"`
	TotalBookings     int        `json:"totalBookings"`
	ConfirmedBookings int        `json:"confirmedBookings"`
	CancelledBookings int        `json:"cancelledBookings"`
	Revenue           float64    `json:"revenue"`
	TicketsSold       int        `json:"ticketsSold"`
	TicketsAvailable  int        `json:"ticketsAvailable"`
}

// Report is the payload of GET /sales.
type Report struct {
	Summary    Summary     `json:"summary"`
	EventStats []EventStat `json:"eventStats"`
}

// Stat is one dashboard tile.
type Stat struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Icon  string `json:"icon"`
}

// RecentEvent is a short event row on the dashboard.
type RecentEvent struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Activity is a recent audit entry shown on the dashboard.
type Activity struct {
	ActorID  int64     `json:"actorId"`
	Action   string    `json:"action"`
	Entity   string    `json:"entity"`
	EntityID string    `json:"entityId"`
	At       time.Time `json:"at"`
}

// Dashboard is the payload of GET /dashboard.
type Dashboard struct {
	Stats          []Stat        `json:"stats"`
	RecentEvents   []RecentEvent `json:"recentEvents"`
	RecentActivity []Activity    `json:"recentActivity"`
}

// Scope restricts dashboard figures. A nil owner means every event.
type Scope struct {
	OwnerID    *int64
	PromotedBy *int64
}
