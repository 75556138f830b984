package services

import (
	"testing"
	"time"
)

func TestIsWorkday_Weekend(t *testing.T) {
	svc := NewBusinessCalendarService()

	saturday := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	sunday := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)

	for _, country := range []string{"US", "GB", "DE", "NONE", "XX"} {
		if svc.IsWorkday(saturday, country) {
			t.Errorf("Saturday should not be a workday in %s", country)
		}
		if svc.IsWorkday(sunday, country) {
			t.Errorf("Sunday should not be a workday in %s", country)
		}
	}
}

func TestIsWorkday_PlainWeekday(t *testing.T) {
	svc := NewBusinessCalendarService()

	// An unremarkable Wednesday in March, holiday-free in the tested zones.
	wednesday := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

	for _, country := range []string{"US", "GB", "NONE"} {
		if !svc.IsWorkday(wednesday, country) {
			t.Errorf("plain Wednesday should be a workday in %s", country)
		}
	}
}

func TestIsWorkday_USIndependenceDay(t *testing.T) {
	svc := NewBusinessCalendarService()

	// July 3, 2026 is the observed Independence Day holiday (July 4 falls
	// on a Saturday).
	observed := time.Date(2026, 7, 3, 12, 0, 0, 0, time.UTC)
	if svc.IsWorkday(observed, "US") {
		t.Error("observed Independence Day should not be a US workday")
	}
	if !svc.IsWorkday(observed, "NONE") {
		t.Error("the weekday-only calendar ignores national holidays")
	}
}

func TestIsWorkday_UnknownCountryFallsBack(t *testing.T) {
	svc := NewBusinessCalendarService()

	monday := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	if !svc.IsWorkday(monday, "ZZ") {
		t.Error("unknown country should fall back to Monday-Friday")
	}
}

func TestIsHoliday_IsInverseOfIsWorkday(t *testing.T) {
	svc := NewBusinessCalendarService()

	day := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	if svc.IsHoliday(day, "US") == svc.IsWorkday(day, "US") {
		t.Error("IsHoliday should be the negation of IsWorkday")
	}
}

func TestSupportedCountries(t *testing.T) {
	svc := NewBusinessCalendarService()

	countries := svc.SupportedCountries()
	if len(countries) == 0 {
		t.Fatal("expected supported countries")
	}

	codes := make(map[string]bool, len(countries))
	for _, c := range countries {
		if c.Code == "" || c.Name == "" {
			t.Errorf("country entry incomplete: %+v", c)
		}
		if codes[c.Code] {
			t.Errorf("duplicate country code %q", c.Code)
		}
		codes[c.Code] = true
	}

	for _, required := range []string{"US", "CN", "NONE"} {
		if !codes[required] {
			t.Errorf("missing country code %q", required)
		}
	}
}
