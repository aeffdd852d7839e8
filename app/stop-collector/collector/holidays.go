package collector

import (
	"time"

	"github.com/rickar/cal/v2"
)

// serviceCalendar classifies cycle start instants into the service day kinds
// transit agencies schedule around
type serviceCalendar struct {
	calendar *cal.BusinessCalendar
}

// makeServiceCalendar builds the calendar with the public holidays the agency
// observes. TODO:: should be customizable per transit agency rather than being hardcoded.
func makeServiceCalendar() *serviceCalendar {
	calendar := cal.NewBusinessCalendar()
	calendar.AddHoliday(
		&cal.Holiday{Name: "New Year's Day", Type: cal.ObservancePublic, Month: time.January, Day: 1, Func: cal.CalcDayOfMonth},
		&cal.Holiday{Name: "New Year Holiday", Type: cal.ObservancePublic, Month: time.January, Day: 2, Func: cal.CalcDayOfMonth},
		&cal.Holiday{Name: "Orthodox Christmas", Type: cal.ObservancePublic, Month: time.January, Day: 7, Func: cal.CalcDayOfMonth},
		&cal.Holiday{Name: "Statehood Day", Type: cal.ObservancePublic, Month: time.February, Day: 15, Func: cal.CalcDayOfMonth},
		&cal.Holiday{Name: "Statehood Day Holiday", Type: cal.ObservancePublic, Month: time.February, Day: 16, Func: cal.CalcDayOfMonth},
		&cal.Holiday{Name: "Labour Day", Type: cal.ObservancePublic, Month: time.May, Day: 1, Func: cal.CalcDayOfMonth},
		&cal.Holiday{Name: "Labour Day Holiday", Type: cal.ObservancePublic, Month: time.May, Day: 2, Func: cal.CalcDayOfMonth},
		&cal.Holiday{Name: "Armistice Day", Type: cal.ObservancePublic, Month: time.November, Day: 11, Func: cal.CalcDayOfMonth},
	)
	return &serviceCalendar{calendar: calendar}
}

// serviceDay classifies at into holiday, saturday, sunday or weekday.
// Holidays win over weekend days.
func (s *serviceCalendar) serviceDay(at time.Time) string {
	if _, observed, _ := s.calendar.IsHoliday(at); observed {
		return "holiday"
	}
	switch at.Weekday() {
	case time.Saturday:
		return "saturday"
	case time.Sunday:
		return "sunday"
	}
	return "weekday"
}
