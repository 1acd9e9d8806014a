package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysInMonth(t *testing.T) {
	cases := []struct {
		year, month, want int
	}{
		{2024, 1, 29}, // leap February
		{2023, 1, 28},
		{1900, 1, 28}, // century, not leap
		{2000, 1, 29}, // divisible by 400
		{2025, 0, 31},
		{2025, 3, 30},
		{2025, 11, 31},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DaysInMonth(tc.year, tc.month), "year=%d month=%d", tc.year, tc.month)
	}
}

func TestFirstDayOfMonth(t *testing.T) {
	assert.Equal(t, 3, FirstDayOfMonth(2025, 0))  // Wed 1 Jan 2025
	assert.Equal(t, 6, FirstDayOfMonth(2025, 2))  // Sat 1 Mar 2025
	assert.Equal(t, 0, FirstDayOfMonth(2025, 5))  // Sun 1 Jun 2025
	assert.Equal(t, 1, FirstDayOfMonth(2025, 11)) // Mon 1 Dec 2025
}

func TestBuildCalendarGridShape(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	for year := 1999; year <= 2030; year++ {
		for month := 0; month < 12; month++ {
			t.Run(fmt.Sprintf("%d-%02d", year, month+1), func(t *testing.T) {
				grid := BuildCalendarGrid(year, month, nil, now)
				require.Len(t, grid, GridCells)

				first := FirstDayOfMonth(year, month)
				assert.Equal(t, 1, grid[first].DayOfMonth)
				assert.True(t, grid[first].IsCurrentMonth)

				current := 0
				for i, cell := range grid {
					if cell.IsCurrentMonth {
						current++
					}
					if i == 0 {
						continue
					}
					prev := grid[i-1].Date(time.UTC)
					assert.Equal(t, prev.AddDate(0, 0, 1), cell.Date(time.UTC), "cell %d not contiguous", i)
				}
				assert.Equal(t, DaysInMonth(year, month), current)
			})
		}
	}
}

func TestBuildCalendarGridLeapYear(t *testing.T) {
	countCurrent := func(grid []CalendarDay) int {
		n := 0
		for _, c := range grid {
			if c.IsCurrentMonth {
				n++
			}
		}
		return n
	}
	now := time.Now()
	assert.Equal(t, 29, countCurrent(BuildCalendarGrid(2024, 1, nil, now)))
	assert.Equal(t, 28, countCurrent(BuildCalendarGrid(2023, 1, nil, now)))
}

func TestBuildCalendarGridYearWrap(t *testing.T) {
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	jan := BuildCalendarGrid(2025, 0, nil, now)
	lead := FirstDayOfMonth(2025, 0)
	require.Equal(t, 3, lead)
	for i := 0; i < lead; i++ {
		assert.Equal(t, 2024, jan[i].Year)
		assert.Equal(t, 11, jan[i].Month)
		assert.False(t, jan[i].IsCurrentMonth)
	}
	assert.Equal(t, []int{29, 30, 31}, []int{jan[0].DayOfMonth, jan[1].DayOfMonth, jan[2].DayOfMonth})

	dec := BuildCalendarGrid(2025, 11, nil, now)
	tail := FirstDayOfMonth(2025, 11) + DaysInMonth(2025, 11)
	require.Equal(t, 32, tail)
	for i := tail; i < GridCells; i++ {
		assert.Equal(t, 2026, dec[i].Year)
		assert.Equal(t, 0, dec[i].Month)
		assert.Equal(t, i-tail+1, dec[i].DayOfMonth)
		assert.False(t, dec[i].IsToday)
	}
}

func TestBuildCalendarGridSundayStart(t *testing.T) {
	// June 2025 starts on a Sunday: no previous-month cells.
	grid := BuildCalendarGrid(2025, 5, nil, time.Now())
	assert.Equal(t, 1, grid[0].DayOfMonth)
	assert.True(t, grid[0].IsCurrentMonth)
	assert.Equal(t, 6, grid[GridCells-1].Month)
}

func TestBuildCalendarGridAppointments(t *testing.T) {
	appt := Appointment{ID: 1, Type: Installation, Date: time.Date(2025, 3, 15, 14, 30, 0, 0, time.UTC), ProjectID: 7}
	grid := BuildCalendarGrid(2025, 2, []Appointment{appt}, time.Now())

	hits := 0
	for _, cell := range grid {
		if len(cell.Appointments) == 0 {
			continue
		}
		hits++
		assert.Equal(t, 15, cell.DayOfMonth)
		assert.True(t, cell.IsCurrentMonth)
		assert.Equal(t, appt, cell.Appointments[0])
	}
	assert.Equal(t, 1, hits)
}

func TestBuildCalendarGridKeepsInputOrder(t *testing.T) {
	day := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)
	appts := []Appointment{
		{ID: 3, Type: Inspection, Date: day.Add(16 * time.Hour)},
		{ID: 1, Type: Maintenance, Date: day.Add(9 * time.Hour)},
		{ID: 9, Type: FollowUp, Date: day.AddDate(0, 0, 1)},
		{ID: 2, Type: SiteAssessment, Date: day.Add(11 * time.Hour)},
	}
	grid := BuildCalendarGrid(2025, 3, appts, time.Now())
	cell := grid[FirstDayOfMonth(2025, 3)+1]
	require.Equal(t, 2, cell.DayOfMonth)

	ids := make([]int64, 0, len(cell.Appointments))
	for _, a := range cell.Appointments {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []int64{3, 1, 2}, ids)
}

func TestBuildCalendarGridFillerAppointments(t *testing.T) {
	// 31 Dec 2024 is shown as a filler cell of January 2025.
	appt := Appointment{ID: 5, Type: FollowUp, Date: time.Date(2024, 12, 31, 10, 0, 0, 0, time.UTC)}
	grid := BuildCalendarGrid(2025, 0, []Appointment{appt}, time.Now())
	require.Len(t, grid[2].Appointments, 1)
	assert.Equal(t, 31, grid[2].DayOfMonth)
	assert.False(t, grid[2].IsCurrentMonth)
}

func TestBuildCalendarGridUsesLocalDate(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 23:30 in New York is already the 16th in UTC.
	appt := Appointment{ID: 1, Type: Inspection, Date: time.Date(2025, 3, 15, 23, 30, 0, 0, ny)}
	grid := BuildCalendarGrid(2025, 2, []Appointment{appt}, time.Now())
	first := FirstDayOfMonth(2025, 2)
	assert.Len(t, grid[first+14].Appointments, 1)
	assert.Empty(t, grid[first+15].Appointments)
}

func TestBuildCalendarGridToday(t *testing.T) {
	now := time.Date(2025, 3, 20, 18, 0, 0, 0, time.UTC)
	grid := BuildCalendarGrid(2025, 2, nil, now)
	today := 0
	for _, c := range grid {
		if c.IsToday {
			today++
			assert.Equal(t, 20, c.DayOfMonth)
			assert.True(t, c.IsCurrentMonth)
		}
	}
	assert.Equal(t, 1, today)

	other := BuildCalendarGrid(2025, 3, nil, now)
	for _, c := range other {
		assert.False(t, c.IsToday, "day %d/%d", c.DayOfMonth, c.Month)
	}
}

func TestGridBounds(t *testing.T) {
	start, end := GridBounds(2025, 2, time.UTC)
	assert.Equal(t, time.Date(2025, 2, 23, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 4, 6, 0, 0, 0, 0, time.UTC), end)

	grid := BuildCalendarGrid(2025, 2, nil, time.Now())
	assert.Equal(t, start, grid[0].Date(time.UTC))
	assert.Equal(t, end, grid[GridCells-1].Date(time.UTC).AddDate(0, 0, 1))
}
