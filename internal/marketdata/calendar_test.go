package marketdata

import (
	"testing"
	"time"
)

func TestCalendar_Weekends(t *testing.T) {
	c := NewCalendar(nil)
	saturday := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)
	sunday := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)
	friday := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)

	if c.IsTradingDay(saturday) || c.IsTradingDay(sunday) {
		t.Fatalf("weekends must not be trading days")
	}
	if !c.IsTradingDay(friday) {
		t.Fatalf("friday must be a trading day")
	}
}

func TestCalendar_Holidays(t *testing.T) {
	c := NewCalendar([]string{"2026-12-25"})
	christmas := time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC)
	if c.IsTradingDay(christmas) {
		t.Fatalf("holiday must not be a trading day")
	}
}

func TestCalendar_PreviousTradingDay_SkipsWeekendAndHoliday(t *testing.T) {
	// Monday 2026-05-25 is a holiday; previous trading day from Tuesday is
	// the prior Friday.
	c := NewCalendar([]string{"2026-05-25"})
	tuesday := time.Date(2026, 5, 26, 0, 0, 0, 0, time.UTC)
	got := c.PreviousTradingDay(tuesday)
	want := time.Date(2026, 5, 22, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got=%s want=%s", got.Format("2006-01-02"), want.Format("2006-01-02"))
	}
}
