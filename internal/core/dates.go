package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MonthKey returns the "YYYY-MM" key of the month d falls in.
func MonthKey(d Date) string {
	return fmt.Sprintf("%04d-%02d", d.Year(), int(d.Month()))
}

// ParseMonthKey splits a "YYYY-MM" key into year and month.
func ParseMonthKey(key string) (year, month int, err error) {
	key = strings.TrimSpace(key)
	if len(key) != 7 || key[4] != '-' {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMonthKey, key)
	}
	year, err = strconv.Atoi(key[:4])
	if err != nil || year < 1 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMonthKey, key)
	}
	month, err = strconv.Atoi(key[5:])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMonthKey, key)
	}
	return year, month, nil
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonthsKeepingDay moves base forward by months whole months and lands on
// dueDay (or base's own day when dueDay is nil). A target day past the end of
// the resulting month is clamped to that month's last day.
func AddMonthsKeepingDay(base Date, months int, dueDay *int) Date {
	day := base.Day()
	if dueDay != nil {
		day = *dueDay
	}

	// Anchor on the 1st so time.Date never normalizes into the following month.
	first := time.Date(base.Year(), base.Month()+time.Month(months), 1, 0, 0, 0, 0, time.UTC)

	if last := DaysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return NewDate(first.Year(), int(first.Month()), day)
}

// RecentMonthKeys returns n month keys ending at now's month, newest first.
func RecentMonthKeys(now time.Time, n int) []string {
	keys := make([]string, 0, n)
	first := NewDate(now.Year(), int(now.Month()), 1)
	for i := 0; i < n; i++ {
		keys = append(keys, MonthKey(AddMonthsKeepingDay(first, -i, nil)))
	}
	return keys
}
