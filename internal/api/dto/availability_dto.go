package dto

import "time"

// Recurrence is the wire form of a rule's repetition. DaysOfWeek uses
// 0=Sunday..6=Saturday and is only read for type "weekly".
type Recurrence struct {
	Type       string `json:"type"`
	DaysOfWeek []int  `json:"days_of_week,omitempty"`
}

// RuleRequest creates a rule. Wall-clock values are read in the caller's
// profile zone; start_time and end_time are ignored for all-day rules.
type RuleRequest struct {
	Date       string      `json:"date"`
	StartTime  string      `json:"start_time"`
	EndTime    string      `json:"end_time"`
	IsAllDay   bool        `json:"is_all_day"`
	Recurrence *Recurrence `json:"recurrence"`
}

// RulePatchRequest changes some fields of a rule.
type RulePatchRequest struct {
	Date       *string     `json:"date"`
	StartTime  *string     `json:"start_time"`
	EndTime    *string     `json:"end_time"`
	IsAllDay   *bool       `json:"is_all_day"`
	Recurrence *Recurrence `json:"recurrence"`
}

// RuleResponse carries the rule in UTC and as authored in its own zone.
type RuleResponse struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Start      time.Time  `json:"start"`
	End        time.Time  `json:"end"`
	IsAllDay   bool       `json:"is_all_day"`
	Recurrence Recurrence `json:"recurrence"`
	Timezone   string     `json:"timezone"`
	Date       string     `json:"date"`
	StartTime  string     `json:"start_time"`
	EndTime    string     `json:"end_time"`
	Version    int64      `json:"version"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// BlockResponse is one merged unavailable interval.
type BlockResponse struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	IsAllDay   bool      `json:"is_all_day"`
	LocalStart string    `json:"local_start"`
	LocalEnd   string    `json:"local_end"`
}

// DayResponse is one calendar date of a user's unavailability as the viewer
// sees it.
type DayResponse struct {
	Date     string          `json:"date"`
	UserID   string          `json:"user_id"`
	Timezone string          `json:"timezone"`
	Blocks   []BlockResponse `json:"blocks"`
}
