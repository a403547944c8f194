package rides

import (
	"time"

	"github.com/medtransit/nemt-scheduler/pkg/models"
)

// maxOccurrences caps expansion when the descriptor carries no end date, so
// generation always terminates.
const maxOccurrences = 366

// expandDates deterministically generates the occurrence dates for a
// recurrence descriptor. Dates are midnight in the start date's location,
// ordered ascending. A range whose end precedes its start yields zero
// occurrences rather than an error.
func expandDates(rec models.Recurrence) []time.Time {
	if rec.Frequency == models.RecurrenceNone {
		return nil
	}

	limit := rec.TotalDays
	if limit <= 0 || limit > maxOccurrences {
		limit = maxOccurrences
	}
	if rec.EndDate == nil && rec.TotalDays <= 0 {
		// unbounded descriptor: nothing safe to generate
		return nil
	}

	start := truncateToDay(rec.StartDate)
	var end time.Time
	if rec.EndDate != nil {
		end = truncateToDay(*rec.EndDate)
		if end.Before(start) {
			return nil
		}
	} else {
		// bounded by count only; scan far enough to find `limit` matches
		end = start.AddDate(0, 0, maxOccurrences)
	}

	weekdays := rec.Weekdays
	if len(weekdays) == 0 {
		weekdays = []time.Weekday{rec.StartDate.Weekday()}
	}

	dates := make([]time.Time, 0, limit)
	for day := start; !day.After(end) && len(dates) < limit; day = day.AddDate(0, 0, 1) {
		switch rec.Frequency {
		case models.RecurrenceDaily:
			dates = append(dates, day)
		case models.RecurrenceWeekly, models.RecurrenceMultipleTimesWeek:
			if weekdayIn(weekdays, day.Weekday()) {
				dates = append(dates, day)
			}
		}
	}

	return dates
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func weekdayIn(set []time.Weekday, d time.Weekday) bool {
	for _, w := range set {
		if w == d {
			return true
		}
	}
	return false
}

// onDate moves a timestamp to the given date, keeping its time of day.
func onDate(t time.Time, date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(),
		t.Hour(), t.Minute(), t.Second(), 0, t.Location())
}
