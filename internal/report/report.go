// Package report aggregates success entries into daily, weekly,
// monthly and custom-range attendance reports.
package report

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"
)

// Stats is the aggregate section of a report. Breakdown maps are only
// populated where they make sense for the period (hours for a day,
// days for longer ranges).
type Stats struct {
	TotalEntries int            `json:"totalEntries"`
	Students     int            `json:"students"`
	Faculty      int            `json:"faculty"`
	ByCollege    map[string]int `json:"byCollege"`
	ByHour       map[string]int `json:"byHour,omitempty"`
	ByDay        map[string]int `json:"byDay,omitempty"`
	DailyAverage int            `json:"dailyAverage,omitempty"`
}

// Report is one generated report.
type Report struct {
	ReportType string `json:"reportType"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	Stats      Stats  `json:"stats"`
}

// Repository reads entry aggregates from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type entryRow struct {
	ts       time.Time
	userType string
	college  string
}

func (r *Repository) successBetween(ctx context.Context, start, end time.Time) ([]entryRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.entry_timestamp, u.user_type, u.college
		FROM entry_logs e JOIN users u ON u.user_id = e.user_id
		WHERE e.status = 'success' AND e.entry_timestamp BETWEEN $1 AND $2
		ORDER BY e.entry_timestamp DESC
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []entryRow
	for rows.Next() {
		var row entryRow
		if err := rows.Scan(&row.ts, &row.userType, &row.college); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// The stat builders are pure over the fetched rows so period math and
// bucketing stay independent of the database.

func baseStats(entries []entryRow) Stats {
	stats := Stats{ByCollege: map[string]int{}}
	for _, e := range entries {
		stats.TotalEntries++
		switch e.userType {
		case "student":
			stats.Students++
		case "faculty":
			stats.Faculty++
		}
		college := e.college
		if college == "" {
			college = "Unknown"
		}
		stats.ByCollege[college]++
	}
	return stats
}

func dailyStats(entries []entryRow, loc *time.Location) Stats {
	stats := baseStats(entries)
	stats.ByHour = map[string]int{}
	for _, e := range entries {
		stats.ByHour[fmt.Sprintf("%d:00", e.ts.In(loc).Hour())]++
	}
	return stats
}

func weeklyStats(entries []entryRow, loc *time.Location) Stats {
	stats := baseStats(entries)
	stats.ByDay = map[string]int{}
	for _, e := range entries {
		stats.ByDay[e.ts.In(loc).Format("Mon")]++
	}
	stats.DailyAverage = int(math.Round(float64(stats.TotalEntries) / 7))
	return stats
}

// rangeStats buckets by date and averages over the period length.
func rangeStats(entries []entryRow, loc *time.Location, days int) Stats {
	stats := baseStats(entries)
	stats.ByDay = map[string]int{}
	for _, e := range entries {
		stats.ByDay[e.ts.In(loc).Format("2006-01-02")]++
	}
	if days > 0 {
		stats.DailyAverage = int(math.Round(float64(stats.TotalEntries) / float64(days)))
	}
	return stats
}

// weekStart returns midnight of the Monday on or before day.
func weekStart(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// Daily reports today's success entries bucketed by hour.
func (r *Repository) Daily(ctx context.Context, now time.Time) (Report, error) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.Add(24*time.Hour - time.Nanosecond)
	entries, err := r.successBetween(ctx, start, end)
	if err != nil {
		return Report{}, err
	}
	return Report{
		ReportType: "daily",
		StartDate:  start.Format("2006-01-02"),
		EndDate:    start.Format("2006-01-02"),
		Stats:      dailyStats(entries, now.Location()),
	}, nil
}

// Weekly reports the current Monday-started week bucketed by weekday.
func (r *Repository) Weekly(ctx context.Context, now time.Time) (Report, error) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := weekStart(day)
	end := start.AddDate(0, 0, 7).Add(-time.Nanosecond)
	entries, err := r.successBetween(ctx, start, end)
	if err != nil {
		return Report{}, err
	}
	return Report{
		ReportType: "weekly",
		StartDate:  start.Format("2006-01-02"),
		EndDate:    end.Format("2006-01-02"),
		Stats:      weeklyStats(entries, now.Location()),
	}, nil
}

// Monthly reports the current calendar month bucketed by date.
func (r *Repository) Monthly(ctx context.Context, now time.Time) (Report, error) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	entries, err := r.successBetween(ctx, start, end)
	if err != nil {
		return Report{}, err
	}
	return Report{
		ReportType: "monthly",
		StartDate:  start.Format("2006-01-02"),
		EndDate:    end.Format("2006-01-02"),
		Stats:      rangeStats(entries, now.Location(), end.Day()),
	}, nil
}

// Custom reports an arbitrary closed date range bucketed by date.
func (r *Repository) Custom(ctx context.Context, start, end time.Time) (Report, error) {
	entries, err := r.successBetween(ctx, start, end)
	if err != nil {
		return Report{}, err
	}
	days := int(end.Sub(start).Hours()/24) + 1
	return Report{
		ReportType: "custom",
		StartDate:  start.Format("2006-01-02"),
		EndDate:    end.Format("2006-01-02"),
		Stats:      rangeStats(entries, time.UTC, days),
	}, nil
}
