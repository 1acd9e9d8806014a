package core

import "time"

// GridCells is the fixed size of a month grid: six weeks of seven days.
const GridCells = 42

// CalendarDay is one cell of a month grid. Month is zero-based (0 = January).
type CalendarDay struct {
	DayOfMonth     int
	Month          int
	Year           int
	IsCurrentMonth bool
	IsToday        bool
	Appointments   []Appointment
}

// Date returns the cell's calendar date at midnight in loc.
func (d CalendarDay) Date(loc *time.Location) time.Time {
	return time.Date(d.Year, time.Month(d.Month+1), d.DayOfMonth, 0, 0, 0, 0, loc)
}

// DaysInMonth returns the number of days of a zero-based month, using day 0
// of the following month so leap years come from the calendar itself.
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month+2), 0, 0, 0, 0, 0, time.UTC).Day()
}

// FirstDayOfMonth returns the weekday index (0 = Sunday) of day 1 of a zero-based month.
func FirstDayOfMonth(year, month int) int {
	return int(time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, time.UTC).Weekday())
}

func prevMonth(year, month int) (int, int) {
	if month == 0 {
		return year - 1, 11
	}
	return year, month - 1
}

func nextMonth(year, month int) (int, int) {
	if month == 11 {
		return year + 1, 0
	}
	return year, month + 1
}

// BuildCalendarGrid lays out a zero-based month as 42 contiguous days: the
// tail of the previous month, the whole target month and the head of the next
// one. Each cell carries, in input order, the appointments whose local calendar
// date (in the location of the appointment's own timestamp) falls on it.
// now only decides which cell is flagged as today.
func BuildCalendarGrid(year, month int, appointments []Appointment, now time.Time) []CalendarDay {
	daysInMonth := DaysInMonth(year, month)
	firstDay := FirstDayOfMonth(year, month)
	py, pm := prevMonth(year, month)
	ny, nm := nextMonth(year, month)
	daysInPrev := DaysInMonth(py, pm)

	byDate := indexAppointments(appointments)
	todayY, todayM, todayD := now.Date()

	days := make([]CalendarDay, 0, GridCells)
	for i := firstDay - 1; i >= 0; i-- {
		day := daysInPrev - i
		days = append(days, CalendarDay{
			DayOfMonth:   day,
			Month:        pm,
			Year:         py,
			Appointments: byDate[dateKey{py, pm, day}],
		})
	}

	for day := 1; day <= daysInMonth; day++ {
		days = append(days, CalendarDay{
			DayOfMonth:     day,
			Month:          month,
			Year:           year,
			IsCurrentMonth: true,
			IsToday:        day == todayD && month == int(todayM)-1 && year == todayY,
			Appointments:   byDate[dateKey{year, month, day}],
		})
	}

	for day := 1; len(days) < GridCells; day++ {
		days = append(days, CalendarDay{
			DayOfMonth:   day,
			Month:        nm,
			Year:         ny,
			Appointments: byDate[dateKey{ny, nm, day}],
		})
	}

	return days
}

// GridBounds returns the first date of the grid and the first date after it,
// in loc. Callers use it to fetch only the appointments a grid can show.
func GridBounds(year, month int, loc *time.Location) (start, end time.Time) {
	first := time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, loc)
	start = first.AddDate(0, 0, -FirstDayOfMonth(year, month))
	return start, start.AddDate(0, 0, GridCells)
}

type dateKey struct {
	year, month, day int
}

// indexAppointments groups appointments by local calendar date. Appending in
// input order keeps each group a stable filter of the input.
func indexAppointments(appointments []Appointment) map[dateKey][]Appointment {
	idx := make(map[dateKey][]Appointment)
	for _, a := range appointments {
		y, m, d := a.Date.Date()
		k := dateKey{y, int(m) - 1, d}
		idx[k] = append(idx[k], a)
	}
	return idx
}
