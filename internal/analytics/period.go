package analytics

import (
	"fmt"
	"time"

	"github.com/nadmax/medrank/internal/apperr"
)

type Period string

const (
	PeriodWeek     Period = "week"
	PeriodMonth    Period = "month"
	PeriodSemester Period = "semester"
)

// ParsePeriod defaults to the current month when s is empty.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "":
		return PeriodMonth, nil
	case PeriodWeek, PeriodMonth, PeriodSemester:
		return Period(s), nil
	}
	return "", apperr.Validation("unknown period %q (expected week, month or semester)", s)
}

// Start returns the inclusive lower bound of the period containing now:
// Monday of the ISO week, the first of the month, or the first of the month
// five months back so a semester spans six calendar months.
func (p Period) Start(now time.Time) time.Time {
	switch p {
	case PeriodWeek:
		return weekStart(now)
	case PeriodSemester:
		return monthStart(now).AddDate(0, -5, 0)
	default:
		return monthStart(now)
	}
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return dayStart(t).AddDate(0, 0, -offset)
}

func monthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

func isoWeekLabel(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}
