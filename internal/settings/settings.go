// Package settings holds the hot-reloadable scheduler settings and their
// Redis-backed provider. The dispatcher re-reads the current value on every
// tick, so updates take effect without a restart.
package settings

import (
	"encoding/json"
	"fmt"
	"time"
)

// ClockTime is a wall-clock time of day with minute precision, serialized
// as "15:04". The zero value means unset.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "HH:MM".
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("parse clock time %q: %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// MinuteOfDay returns minutes elapsed since midnight.
func (c ClockTime) MinuteOfDay() int {
	return c.Hour*60 + c.Minute
}

func (c ClockTime) IsZero() bool {
	return c.Hour == 0 && c.Minute == 0
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Settings governs when dispatch cycles fire and the time unit of the
// spaced-repetition weighting.
type Settings struct {
	// TimePeriod is the minimum spacing between dispatch cycles and the
	// repetition period of the weighting formula.
	TimePeriod time.Duration `json:"time_period"`
	// FromTime/ToTime bound the delivery window, inclusive on both ends.
	// Both zero means unrestricted.
	FromTime ClockTime `json:"from_time"`
	ToTime   ClockTime `json:"to_time"`
	// WeekDays lists the days cycles may fire on. Empty means unrestricted.
	WeekDays []time.Weekday `json:"week_days"`
}

// Default mirrors the settings the platform ships with: a 30 second period,
// an all-day window and every weekday enabled.
func Default() Settings {
	return Settings{
		TimePeriod: 30 * time.Second,
		FromTime:   ClockTime{Hour: 0, Minute: 0},
		ToTime:     ClockTime{Hour: 23, Minute: 59},
		WeekDays: []time.Weekday{
			time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
			time.Thursday, time.Friday, time.Saturday,
		},
	}
}

// InWindow reports whether t falls inside the [FromTime, ToTime] delivery
// window. An unset window allows everything.
func (s Settings) InWindow(t time.Time) bool {
	if s.FromTime.IsZero() && s.ToTime.IsZero() {
		return true
	}
	minute := t.Hour()*60 + t.Minute()
	return minute >= s.FromTime.MinuteOfDay() && minute <= s.ToTime.MinuteOfDay()
}

// AllowsWeekday reports whether cycles may fire on the given weekday.
func (s Settings) AllowsWeekday(d time.Weekday) bool {
	if len(s.WeekDays) == 0 {
		return true
	}
	for _, wd := range s.WeekDays {
		if wd == d {
			return true
		}
	}
	return false
}
