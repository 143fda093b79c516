// Package pricing computes parking fees from entry and exit times.
//
// The regime is chosen by the time of day the vehicle entered, never by the
// exit time, so a visit that starts at 21:59 is billed on the day table even
// when it ends after the night window opened.
package pricing

import (
	"errors"
	"fmt"
	"time"
)

type Facility string

const (
	Ridgeways Facility = "Ridgeways"
	RNG       Facility = "RNG"
)

type Regime string

const (
	Day   Regime = "day"
	Night Regime = "night"
)

// Tariff holds the window boundaries and thresholds of the fee tables.
// DayStart and DayEnd are offsets from local midnight.
type Tariff struct {
	DayStart             time.Duration
	DayEnd               time.Duration
	DayFreeMinutes       int
	DayIncludedMinutes   int
	NightIncludedMinutes int
	BaseFee              int
	HourlyFee            int
}

type Result struct {
	Amount          int
	DurationMinutes int
	Regime          Regime
	Facility        Facility
}

func DefaultTariff() Tariff {
	return Tariff{
		DayStart:             6 * time.Hour,
		DayEnd:               22 * time.Hour,
		DayFreeMinutes:       30,
		DayIncludedMinutes:   120,
		NightIncludedMinutes: 60,
		BaseFee:              50,
		HourlyFee:            50,
	}
}

func (t Tariff) Validate() error {
	const day = 24 * time.Hour
	if t.DayStart < 0 || t.DayStart >= day || t.DayEnd < 0 || t.DayEnd >= day {
		return fmt.Errorf("day window %s-%s must lie within a single day", t.DayStart, t.DayEnd)
	}
	if t.DayStart == t.DayEnd {
		return errors.New("day window must not be empty")
	}
	if t.DayFreeMinutes < 0 || t.NightIncludedMinutes < 0 {
		return errors.New("included minutes must not be negative")
	}
	if t.DayIncludedMinutes < t.DayFreeMinutes {
		return fmt.Errorf("day included minutes %d below free minutes %d", t.DayIncludedMinutes, t.DayFreeMinutes)
	}
	if t.BaseFee < 0 || t.HourlyFee < 0 {
		return errors.New("fees must not be negative")
	}
	return nil
}

// RegimeAt reports the table that applies to a visit entering at entry.
func (t Tariff) RegimeAt(entry time.Time) Regime {
	h, m, s := entry.Clock()
	offset := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(entry.Nanosecond())

	var inside bool
	if t.DayStart < t.DayEnd {
		inside = offset >= t.DayStart && offset < t.DayEnd
	} else {
		inside = offset >= t.DayStart || offset < t.DayEnd
	}
	if inside {
		return Day
	}
	return Night
}

func (t Tariff) Price(entry, exit time.Time, facility Facility) Result {
	minutes := 0
	if d := exit.Sub(entry); d > 0 {
		minutes = int(d / time.Minute)
	}

	r := Result{DurationMinutes: minutes, Regime: t.RegimeAt(entry), Facility: facility}
	if r.Regime == Day {
		switch {
		case minutes <= t.DayFreeMinutes:
			r.Amount = 0
		case minutes <= t.DayIncludedMinutes:
			r.Amount = t.BaseFee
		default:
			r.Amount = t.BaseFee + t.HourlyFee*extraHours(minutes-t.DayIncludedMinutes)
		}
		return r
	}

	if minutes <= t.NightIncludedMinutes {
		r.Amount = t.BaseFee
	} else {
		r.Amount = t.BaseFee + t.HourlyFee*extraHours(minutes-t.NightIncludedMinutes)
	}
	return r
}

// FreeMinutesLeft is the time remaining before a day visit starts being charged.
func (t Tariff) FreeMinutesLeft(r Result) int {
	if r.Regime != Day || r.DurationMinutes >= t.DayFreeMinutes {
		return 0
	}
	return t.DayFreeMinutes - r.DurationMinutes
}

// extraHours bills partial hours as full hours.
func extraHours(minutes int) int {
	return (minutes + 59) / 60
}
