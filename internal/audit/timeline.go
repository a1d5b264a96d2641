package audit

import "time"

// Filter narrows the audit timeline. Zero values mean no restriction.
type Filter struct {
	From    time.Time
	To      time.Time
	ActorID *int64
	Entity  string
	Action  string
	Page    int
	Limit   int
}

// Entry is one row of audit_logs joined with the actor email.
type Entry struct {
	ID         int64          `json:"id"`
	ActorID    int64          `json:"actorId"`
	ActorEmail string         `json:"actorEmail,omitempty"`
	Action     string         `json:"action"`
	Entity     string         `json:"entity"`
	EntityID   string         `json:"entityId"`
	Meta       map[string]any `json:"meta,omitempty"`
	At         time.Time      `json:"at"`
}

// PagingInfo describes a window of the timeline without counting every row.
type PagingInfo struct {
	Page     int  `json:"page"`
	Limit    int  `json:"limit"`
	HasNext  bool `json:"hasNext"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// Result wraps a timeline window.
type Result struct {
	Entries []Entry    `json:"entries"`
	Paging  PagingInfo `json:"paging"`
}
