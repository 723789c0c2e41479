package service

import "time"

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddMonths adds n calendar months to t, clamping the day to the target month's length.
// 2024-01-31 plus one month is 2024-02-29.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := DateOnly(t).Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

// MonthsBetween returns the number of whole months elapsed from start to end.
func MonthsBetween(start, end time.Time) int {
	start, end = DateOnly(start), DateOnly(end)
	if end.Before(start) {
		return -MonthsBetween(end, start)
	}
	months := (end.Year()-start.Year())*12 + int(end.Month()-start.Month())
	if AddMonths(start, months).After(end) {
		months--
	}
	return months
}

// DaysBetween returns the number of calendar days from start to end.
func DaysBetween(start, end time.Time) int {
	return int(DateOnly(end).Sub(DateOnly(start)).Hours() / 24)
}

// DueDate returns the day a period with the given offset falls due after activation.
func DueDate(activation time.Time, monthOffset int) time.Time {
	return AddMonths(activation, monthOffset)
}

// IsDueOn reports whether a period is due exactly on asOf.
func IsDueOn(activation, asOf time.Time, monthOffset int) bool {
	return MonthsBetween(activation, asOf) == monthOffset && DueDate(activation, monthOffset).Equal(DateOnly(asOf))
}
