package service

import (
	"fmt"
	"time"
)

// WindowPolicy decides whether an instant falls inside the allowed daily
// sending window for a timezone. Hours are local and the window is
// half-open: [startHour, endHour).
type WindowPolicy struct {
	startHour int
	endHour   int
}

func NewWindowPolicy(startHour, endHour int) *WindowPolicy {
	return &WindowPolicy{
		startHour: startHour,
		endHour:   endHour,
	}
}

// InWindow reports whether the local hour at t in the given timezone falls
// inside the sending window.
func (p *WindowPolicy) InWindow(t time.Time, timezone string) (bool, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return false, fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}

	hour := t.In(loc).Hour()
	return hour >= p.startHour && hour < p.endHour, nil
}

// NextWindowStart returns the next instant at which the window opens in the
// given timezone: today's opening when t is still before it, otherwise
// tomorrow's. The offset is resolved for the target calendar day, so the
// result stays correct across daylight-saving transitions.
func (p *WindowPolicy) NextWindowStart(t time.Time, timezone string) (time.Time, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}

	local := t.In(loc)
	todayStart := time.Date(local.Year(), local.Month(), local.Day(), p.startHour, 0, 0, 0, loc)
	if local.Before(todayStart) {
		return todayStart, nil
	}

	return time.Date(local.Year(), local.Month(), local.Day()+1, p.startHour, 0, 0, 0, loc), nil
}
