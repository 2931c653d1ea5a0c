package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func row(ts time.Time, userType, college string) entryRow {
	return entryRow{ts: ts, userType: userType, college: college}
}

func TestBaseStatsCountsAndColleges(t *testing.T) {
	at := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	stats := baseStats([]entryRow{
		row(at, "student", "CCS"),
		row(at, "student", "CCS"),
		row(at, "faculty", "COE"),
		row(at, "student", ""),
	})

	assert.Equal(t, 4, stats.TotalEntries)
	assert.Equal(t, 3, stats.Students)
	assert.Equal(t, 1, stats.Faculty)
	assert.Equal(t, map[string]int{"CCS": 2, "COE": 1, "Unknown": 1}, stats.ByCollege)
}

func TestBaseStatsEmpty(t *testing.T) {
	stats := baseStats(nil)
	assert.Equal(t, 0, stats.TotalEntries)
	assert.Empty(t, stats.ByCollege)
}

func TestDailyStatsBucketsByHour(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	stats := dailyStats([]entryRow{
		row(day.Add(8*time.Hour+5*time.Minute), "student", "CCS"),
		row(day.Add(8*time.Hour+50*time.Minute), "student", "CCS"),
		row(day.Add(17*time.Hour), "faculty", "COE"),
	}, time.UTC)

	assert.Equal(t, map[string]int{"8:00": 2, "17:00": 1}, stats.ByHour)
	assert.Nil(t, stats.ByDay)
}

func TestWeeklyStatsBucketsByWeekday(t *testing.T) {
	mon := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC) // a Monday
	stats := weeklyStats([]entryRow{
		row(mon.Add(9*time.Hour), "student", "CCS"),
		row(mon.AddDate(0, 0, 1).Add(9*time.Hour), "student", "CCS"),
		row(mon.AddDate(0, 0, 1).Add(10*time.Hour), "faculty", "COE"),
		row(mon.AddDate(0, 0, 4).Add(9*time.Hour), "student", "CCS"),
	}, time.UTC)

	assert.Equal(t, map[string]int{"Mon": 1, "Tue": 2, "Fri": 1}, stats.ByDay)
	assert.Equal(t, 1, stats.DailyAverage, "4 entries over 7 days rounds to 1")
}

func TestRangeStatsBucketsByDateAndAverages(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	stats := rangeStats([]entryRow{
		row(start.Add(8*time.Hour), "student", "CCS"),
		row(start.Add(9*time.Hour), "student", "CCS"),
		row(start.AddDate(0, 0, 1).Add(8*time.Hour), "faculty", "COE"),
	}, time.UTC, 2)

	assert.Equal(t, map[string]int{"2026-03-01": 2, "2026-03-02": 1}, stats.ByDay)
	assert.Equal(t, 2, stats.DailyAverage, "3 entries over 2 days rounds to 2")
}

func TestRangeStatsZeroDaysSkipsAverage(t *testing.T) {
	stats := rangeStats(nil, time.UTC, 0)
	assert.Equal(t, 0, stats.DailyAverage)
}

func TestWeekStartIsMonday(t *testing.T) {
	cases := []struct {
		day  time.Time
		want time.Time
	}{
		{time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)},   // Monday
		{time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)},  // Wednesday
		{time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)},  // Sunday belongs to the prior Monday
		{time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)}, // next Monday
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, weekStart(tc.day), "week start for %s", tc.day.Weekday())
	}
}
