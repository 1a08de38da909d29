package models

import (
	"fmt"
	"time"
)

// Device is a controllable piece of equipment (pump, nebulizer, fan bank)
type Device struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	On   bool   `json:"on" yaml:"on"`
}

// ThresholdRow applies Limit from FromAge (lot age in days) onward
type ThresholdRow struct {
	FromAge int     `json:"from_age" yaml:"from_age"`
	Limit   float64 `json:"limit" yaml:"limit"`
	Stage   string  `json:"stage" yaml:"stage"`
}

// ThresholdTable is an ordered list of rows; the last row whose FromAge is not
// above the current age wins.
type ThresholdTable []ThresholdRow

// DefaultThresholds are used when the facility has no table configured for a kind
var DefaultThresholds = map[AlertKind]ThresholdTable{
	AlertHeat: {
		{FromAge: 0, Limit: 32, Stage: "early"},
		{FromAge: 43, Limit: 30, Stage: "growth"},
		{FromAge: 120, Limit: 30, Stage: "finishing"},
	},
	AlertHumidityHigh: {
		{FromAge: 0, Limit: 75, Stage: "early"},
		{FromAge: 43, Limit: 70, Stage: "growth"},
	},
}

// TaskCalendarEntry is a husbandry task due on a given lot age
type TaskCalendarEntry struct {
	Day  int
	Task string
}

// TaskCalendar is scanned in order; the first entry matching the current age wins
var TaskCalendar = []TaskCalendarEntry{
	{Day: 1, Task: "Marek's disease vaccine check and chick quality inspection"},
	{Day: 7, Task: "Newcastle disease + infectious bronchitis vaccine (drinking water)"},
	{Day: 14, Task: "Gumboro (IBD) vaccine (drinking water)"},
	{Day: 21, Task: "Newcastle disease booster"},
	{Day: 28, Task: "Gumboro booster and litter inspection"},
	{Day: 35, Task: "Coccidiosis check and weighing sample"},
	{Day: 42, Task: "Feed change to grower ration, weighing sample"},
	{Day: 56, Task: "Fowl pox vaccine (wing web)"},
	{Day: 84, Task: "Deworming"},
	{Day: 112, Task: "Infectious coryza vaccine"},
	{Day: 126, Task: "Pre-lay Newcastle + IB booster, lighting program review"},
}

// DayKey is a calendar day in the facility time zone
type DayKey struct {
	Year  int
	Month time.Month
	Day   int
}

const dayKeyLayout = "2006-01-02"

// NewDayKey returns the calendar day of t as observed in loc
func NewDayKey(t time.Time, loc *time.Location) DayKey {
	y, m, d := t.In(loc).Date()
	return DayKey{Year: y, Month: m, Day: d}
}

// ParseDayKey parses the persisted form
func ParseDayKey(s string) (DayKey, error) {
	t, err := time.Parse(dayKeyLayout, s)
	if err != nil {
		return DayKey{}, fmt.Errorf("invalid day key %q: %w", s, err)
	}
	return NewDayKey(t, time.UTC), nil
}

func (k DayKey) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", k.Year, k.Month, k.Day)
}

// IsZero reports whether k was never set
func (k DayKey) IsZero() bool {
	return k == DayKey{}
}

// AddDays moves k by n calendar days
func (k DayKey) AddDays(n int) DayKey {
	return NewDayKey(k.noon().AddDate(0, 0, n), time.UTC)
}

// DaysSince counts calendar days from start to k
func (k DayKey) DaysSince(start DayKey) int {
	return int(k.noon().Sub(start.noon()).Hours() / 24)
}

// noon anchors the day in UTC so arithmetic never crosses a DST edge
func (k DayKey) noon() time.Time {
	return time.Date(k.Year, k.Month, k.Day, 12, 0, 0, 0, time.UTC)
}
