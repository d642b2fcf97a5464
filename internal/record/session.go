package record

import (
	"time"
)

// Session is a weekly trading window in a market's local time.
type Session struct {
	Location *time.Location
	// Open and Close are offsets from local midnight.
	Open, Close time.Duration
	Days        []time.Weekday
	// Holidays are local dates (YYYY-MM-DD) with no session.
	Holidays map[string]bool
}

// NSESession is the cash/F&O session of the National Stock Exchange,
// 09:15 to 15:30 IST, Monday to Friday.
func NSESession(loc *time.Location, holidays []string) Session {
	s := Session{
		Location: loc,
		Open:     9*time.Hour + 15*time.Minute,
		Close:    15*time.Hour + 30*time.Minute,
		Days:     []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		Holidays: make(map[string]bool, len(holidays)),
	}
	for _, h := range holidays {
		s.Holidays[h] = true
	}
	return s
}

// Day returns the local trading date of t.
func (s Session) Day(t time.Time) string {
	return t.In(s.Location).Format("2006-01-02")
}

func (s Session) isTradingDay(local time.Time) bool {
	if s.Holidays[local.Format("2006-01-02")] {
		return false
	}
	for _, d := range s.Days {
		if local.Weekday() == d {
			return true
		}
	}
	return false
}

func midnight(local time.Time) time.Time {
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, local.Location())
}

// IsOpen reports whether t falls inside [Open, Close) on a trading day.
func (s Session) IsOpen(t time.Time) bool {
	local := t.In(s.Location)
	if !s.isTradingDay(local) {
		return false
	}
	since := local.Sub(midnight(local))
	return since >= s.Open && since < s.Close
}

// NextOpen returns the first session open at or after t. It returns t
// itself while the session is open, and the zero time when no trading day
// falls within the next year.
func (s Session) NextOpen(t time.Time) time.Time {
	if s.IsOpen(t) {
		return t
	}
	day := midnight(t.In(s.Location))
	for i := 0; i <= 366; i++ {
		d := day.AddDate(0, 0, i)
		open := d.Add(s.Open)
		if s.isTradingDay(d) && !open.Before(t) {
			return open
		}
	}
	return time.Time{}
}
