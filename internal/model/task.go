package model

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the only accepted deadline format.
const DateLayout = "2006-01-02"

const (
	NoDescription = "no description"
	NoDeadline    = "no deadline"
	Unassigned    = "unassigned"
)

// Status is stored as a small integer; the values are part of the table contract.
type Status int16

const (
	StatusDone       Status = 0
	StatusNotStarted Status = 1
	StatusInProgress Status = 2
)

// Statuses lists every status in prompt order.
var Statuses = []Status{StatusDone, StatusNotStarted, StatusInProgress}

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "Done"
	case StatusNotStarted:
		return "NotStarted"
	case StatusInProgress:
		return "InProgress"
	default:
		return "Unknown"
	}
}

func (s Status) Valid() bool {
	return s >= StatusDone && s <= StatusInProgress
}

// ParseStatus accepts the numeric value or the name, case-insensitively.
func ParseStatus(raw string) (Status, bool) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		s := Status(n)
		return s, s.Valid()
	}
	for _, s := range Statuses {
		if strings.EqualFold(raw, s.String()) {
			return s, true
		}
	}
	return 0, false
}

// Task is one row of a channel relation. The physical table is chosen per
// channel, so Task has no fixed table name of its own.
type Task struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)"`
	TaskName    string     `gorm:"column:task_name;not null"`
	Description *string    `gorm:"column:description"`
	Member      *string    `gorm:"column:member"`
	Deadline    *time.Time `gorm:"column:deadline;type:date"`
	Status      Status     `gorm:"column:status;not null;default:1;check:status IN (0,1,2)"`
}

func (t Task) DescriptionText() string {
	if t.Description == nil {
		return NoDescription
	}
	return *t.Description
}

func (t Task) DeadlineText() string {
	if t.Deadline == nil {
		return NoDeadline
	}
	return t.Deadline.Format(DateLayout)
}

// Overdue reports whether an in-progress task is past its deadline.
// Dates are compared as calendar days in the location of now.
func (t Task) Overdue(now time.Time) bool {
	if t.Status != StatusInProgress || t.Deadline == nil {
		return false
	}
	return t.Deadline.Format(DateLayout) < now.Format(DateLayout)
}

// DisplayStatus is the status shown to users; "InProgress (overdue)" is
// derived at read time and never stored.
func (t Task) DisplayStatus(now time.Time) string {
	if t.Overdue(now) {
		return t.Status.String() + " (overdue)"
	}
	return t.Status.String()
}

// ParseDeadline parses a calendar date in DateLayout. Malformed or empty
// input yields nil rather than an error.
func ParseDeadline(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := time.Parse(DateLayout, raw)
	if err != nil {
		return nil
	}
	return &d
}
