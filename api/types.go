package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Timestamp accepts both RFC 3339 and the zone-less ISO 8601 form the
// backend emits for naive datetimes (read as UTC).
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognised format %q", raw)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// ID is an identifier the backend sends either as a string or a number.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

type Question struct {
	ID        ID        `json:"id"`
	Question  string    `json:"question"`
	CreatedAt Timestamp `json:"created_at"`
}

type FeedbackItem struct {
	ID        ID        `json:"id"`
	Feedback  string    `json:"feedback"`
	CreatedAt Timestamp `json:"created_at"`
}

type CreatedQuestion struct {
	ID ID `json:"id"`
}

type PlanRequest struct {
	YearsPlayed int     `json:"years_played"`
	Handicap    float64 `json:"handicap"`
	Strengths   string  `json:"strengths"`
	Weaknesses  string  `json:"weaknesses"`
	Goals       string  `json:"goals"`
}

type GeneratedPlan struct {
	Plan string `json:"plan"`
	ID   ID     `json:"id"`
}

type CurrentPlan struct {
	Plan        string    `json:"plan"`
	YearsPlayed int       `json:"years_played"`
	Handicap    float64   `json:"handicap"`
	Strengths   string    `json:"strengths"`
	Weaknesses  string    `json:"weaknesses"`
	Goals       string    `json:"goals"`
	CreatedAt   Timestamp `json:"created_at"`
}

type Resource struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

type ResourceList struct {
	Resources []Resource `json:"resources"`
	Filter    string     `json:"filter"`
	UserID    string     `json:"user_id"`
}

type ProgressReceipt struct {
	Message   string         `json:"message"`
	Data      map[string]any `json:"data"`
	UserID    string         `json:"user_id"`
	Timestamp Timestamp      `json:"timestamp"`
}

type ProgressReport struct {
	Progress  []map[string]any `json:"progress"`
	UserID    string           `json:"user_id"`
	StartDate *string          `json:"start_date"`
	EndDate   *string          `json:"end_date"`
	Message   string           `json:"message"`
}

type ProfileDetails struct {
	Name       *string  `json:"name"`
	Age        *int     `json:"age"`
	SkillLevel *string  `json:"skill_level"`
	Goals      []string `json:"goals"`
}

type Profile struct {
	UserID  string         `json:"user_id"`
	Email   string         `json:"email"`
	Profile ProfileDetails `json:"profile"`
}

type ProfileUpdate struct {
	Message       string   `json:"message"`
	UserID        string   `json:"user_id"`
	UpdatedFields []string `json:"updated_fields"`
}

// Date formats a day the way the progress endpoints expect it.
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
