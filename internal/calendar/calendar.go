// Package calendar builds the month grid the booking date picker renders.
package calendar

import (
	"fmt"
	"time"

	"github.com/jwalitptl/clinic-portal/internal/model"
)

const MonthLayout = "2006-01"

// ParseMonth parses a YYYY-MM month.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.Parse(MonthLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("month must be YYYY-MM: %w", err)
	}
	return t, nil
}

// MonthGrid returns whole weeks, Sunday first, covering month. Days before
// minDate are disabled and the day equal to minDate is marked as today.
func MonthGrid(month time.Time, minDate time.Time) model.CalendarMonth {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	start := first.AddDate(0, 0, -int(first.Weekday()))
	end := last.AddDate(0, 0, int(time.Saturday-last.Weekday()))

	floor := time.Date(minDate.Year(), minDate.Month(), minDate.Day(), 0, 0, 0, 0, time.UTC)

	grid := model.CalendarMonth{Month: first.Format(MonthLayout)}
	var week []model.CalendarDay
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		week = append(week, model.CalendarDay{
			Date:     d.Format(model.DateLayout),
			Day:      d.Day(),
			InMonth:  d.Month() == first.Month(),
			IsToday:  d.Equal(floor),
			Disabled: d.Before(floor),
		})
		if len(week) == 7 {
			grid.Weeks = append(grid.Weeks, week)
			week = nil
		}
	}
	return grid
}
