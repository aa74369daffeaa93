package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the pipeline stage of an opportunity.
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusReady     Status = "Ready"
	StatusSubmitted Status = "Submitted"
	StatusAwarded   Status = "Awarded"
	StatusLost      Status = "Lost"
)

// Statuses lists every status in dashboard order.
var Statuses = []Status{StatusDraft, StatusReady, StatusSubmitted, StatusAwarded, StatusLost}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// Opportunity is one record of the static data document. It is never mutated
// after load; status overrides are applied to copies.
type Opportunity struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Agency          string    `json:"agency"`
	NAICS           string    `json:"naics"`
	SetAside        []string  `json:"setAside"`
	Vehicle         string    `json:"vehicle"`
	DueDate         Timestamp `json:"dueDate"`
	Status          Status    `json:"status"`
	PercentComplete int       `json:"percentComplete"`
	FitScore        float64   `json:"fitScore"`
	Ceiling         float64   `json:"ceiling"`
	Keywords        []string  `json:"keywords"`
}

// Validate checks the record invariants of the data document.
func (o Opportunity) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return fmt.Errorf("opportunity has empty id")
	}
	if !o.Status.Valid() {
		return fmt.Errorf("opportunity %s: unknown status %q", o.ID, o.Status)
	}
	if o.PercentComplete < 0 || o.PercentComplete > 100 {
		return fmt.Errorf("opportunity %s: percentComplete %d out of range", o.ID, o.PercentComplete)
	}
	if o.Ceiling < 0 {
		return fmt.Errorf("opportunity %s: negative ceiling", o.ID)
	}
	if o.DueDate.IsZero() {
		return fmt.Errorf("opportunity %s: missing dueDate", o.ID)
	}
	return nil
}

// Timestamp is a due date as carried in the data document. It accepts full
// RFC 3339 timestamps as well as bare calendar dates and always marshals back
// to RFC 3339. The text it was parsed from is kept for export.
type Timestamp struct {
	time.Time
	raw string
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t, raw: s}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil || *raw == "" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(*raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// String returns the source text when there is one, RFC 3339 otherwise.
func (t Timestamp) String() string {
	if t.raw != "" {
		return t.raw
	}
	if t.IsZero() {
		return ""
	}
	return t.Time.Format(time.RFC3339)
}

// StatusOverrides shadows record statuses by id without touching the source data.
type StatusOverrides map[string]Status

func (o StatusOverrides) Clone() StatusOverrides {
	out := make(StatusOverrides, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}
