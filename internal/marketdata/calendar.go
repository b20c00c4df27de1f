package marketdata

import "time"

// Calendar answers trading-day questions for the US equity calendar.
// Weekends are always closed; Holidays holds exchange closures as
// YYYY-MM-DD keys.
type Calendar struct {
	Holidays map[string]bool
}

func NewCalendar(holidays []string) *Calendar {
	set := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		set[h] = true
	}
	return &Calendar{Holidays: set}
}

func (c *Calendar) IsTradingDay(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	if c == nil || c.Holidays == nil {
		return true
	}
	return !c.Holidays[date.Format("2006-01-02")]
}

func (c *Calendar) PreviousTradingDay(date time.Time) time.Time {
	d := date.AddDate(0, 0, -1)
	for !c.IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
