package recon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DATE - Calendar day (sales, invoices and bank lines are all day-granular)
// =============================================================================

// DateLayout is the wire format for every date in the system.
const DateLayout = "2006-01-02"

// Date is a calendar day in UTC. The zero value means "unknown".
type Date struct {
	Time time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date { return DateOf(time.Now()) }

// ParseDate accepts "2006-01-02" and RFC3339 timestamps. The time-of-day part
// of a timestamp is dropped.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("empty date")
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD)", s)
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

func (d Date) IsZero() bool { return d.Time.IsZero() }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time.Format(DateLayout)
}

// DaysApart returns the absolute number of days between two dates.
func DaysApart(a, b Date) int {
	days := int(b.Time.Sub(a.Time).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if strings.TrimSpace(s) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// DATE RANGE - Inclusive [Start, End], the identity of a ledger
// =============================================================================

type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Validate rejects missing bounds and inverted ranges.
func (r DateRange) Validate() error {
	if r.Start.IsZero() {
		return &ValidationError{Field: "dateRange.start", Message: "start date is required", Err: ErrInvalidDateRange}
	}
	if r.End.IsZero() {
		return &ValidationError{Field: "dateRange.end", Message: "end date is required", Err: ErrInvalidDateRange}
	}
	if r.End.Before(r.Start) {
		return &ValidationError{Field: "dateRange", Message: "end date is before start date", Err: ErrInvalidDateRange}
	}
	return nil
}

func (r DateRange) Contains(d Date) bool {
	return r.Start.BeforeOrEqual(d) && d.BeforeOrEqual(r.End)
}

// Widen extends the range by n days on both sides.
func (r DateRange) Widen(n int) DateRange {
	return DateRange{Start: r.Start.AddDays(-n), End: r.End.AddDays(n)}
}

func (r DateRange) String() string {
	return r.Start.String() + ".." + r.End.String()
}
