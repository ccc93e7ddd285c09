package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const dateLayout = "2006-01-02"

// dateRange is a half-open [Start, End) interval in the business timezone.
type dateRange struct {
	Start time.Time
	End   time.Time
}

func (d dateRange) IsZero() bool { return d.Start.IsZero() && d.End.IsZero() }

// LastDay is the inclusive end date, for printing.
func (d dateRange) LastDay() time.Time {
	if d.End.IsZero() {
		return d.End
	}
	return d.End.AddDate(0, 0, -1)
}

func (d dateRange) startParam() pgtype.Timestamptz {
	if d.Start.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: d.Start, Valid: true}
}

func (d dateRange) endParam() pgtype.Timestamptz {
	if d.End.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: d.End, Valid: true}
}

var errDateRangeRequired = errors.New("start_date and end_date are required")

// parseDateRange reads ?preset= or ?start_date=&end_date= (YYYY-MM-DD, end
// inclusive). Days start at midnight in loc. Neither given yields a zero range.
func parseDateRange(r *http.Request, loc *time.Location, now time.Time) (dateRange, error) {
	q := r.URL.Query()
	today := midnight(now, loc)

	switch preset := q.Get("preset"); preset {
	case "":
	case "today":
		return dateRange{Start: today, End: today.AddDate(0, 0, 1)}, nil
	case "yesterday":
		return dateRange{Start: today.AddDate(0, 0, -1), End: today}, nil
	case "week":
		return dateRange{Start: today.AddDate(0, 0, -6), End: today.AddDate(0, 0, 1)}, nil
	case "month":
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
		return dateRange{Start: first, End: today.AddDate(0, 0, 1)}, nil
	default:
		return dateRange{}, fmt.Errorf("preset must be one of: today yesterday week month")
	}

	var out dateRange
	if s := q.Get("start_date"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			return dateRange{}, errors.New("start_date must be YYYY-MM-DD")
		}
		out.Start = t
	}
	if s := q.Get("end_date"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			return dateRange{}, errors.New("end_date must be YYYY-MM-DD")
		}
		out.End = t.AddDate(0, 0, 1)
	}
	if !out.Start.IsZero() && !out.End.IsZero() && !out.Start.Before(out.End) {
		return dateRange{}, errors.New("end_date must not be before start_date")
	}
	return out, nil
}

// requireDateRange is parseDateRange for endpoints that need both bounds.
func requireDateRange(r *http.Request, loc *time.Location, now time.Time) (dateRange, error) {
	d, err := parseDateRange(r, loc, now)
	if err != nil {
		return d, err
	}
	if d.Start.IsZero() || d.End.IsZero() {
		return d, errDateRangeRequired
	}
	return d, nil
}

func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
