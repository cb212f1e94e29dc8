package attendance

import (
	"math"
	"regexp"
	"time"
)

// DailyOverviewPoint is one day of the backend overview payload.
// Present+Absent == TotalStudents is the backend's promise and is not rechecked.
type DailyOverviewPoint struct {
	Date          string `json:"date"`
	Day           int    `json:"day"`
	DateLabel     string `json:"date_label"`
	TotalStudents int    `json:"total_students"`
	Present       int    `json:"present"`
	Absent        int    `json:"absent"`
	CheckIns      int    `json:"check_ins"`
	CheckOuts     int    `json:"check_outs"`
}

// PercentagePoint is a chart point.
type PercentagePoint struct {
	DailyOverviewPoint
	AttendancePercentage float64 `json:"attendance_percentage"`
}

// TodaySummary holds the counts the today_summary action reports.
type TodaySummary struct {
	Date      string
	Attended  int
	Late      int
	CheckIns  int
	CheckOuts int
}

// TodaySnapshot is today's present/absent breakdown.
type TodaySnapshot struct {
	Date          string  `json:"date"`
	Attended      int     `json:"attended"`
	Late          int     `json:"late"`
	CheckIns      int     `json:"check_ins"`
	CheckOuts     int     `json:"check_outs"`
	TotalStudents int     `json:"total_students"`
	Present       int     `json:"present"`
	Absent        int     `json:"absent"`
	Rate          float64 `json:"rate"`
	// Inconsistent is set when the backend reports more present students than
	// are enrolled. Absent is clamped to zero in that case.
	Inconsistent bool `json:"inconsistent"`
}

// Round1 rounds half away from zero to one decimal place.
func Round1(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*10) / 10
}

func percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return Round1(float64(part) / float64(total) * 100)
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// ComputeWeeklySeries adds the attendance percentage to every point. The
// output keeps the input's length and order. Negative counts are read as zero.
func ComputeWeeklySeries(points []DailyOverviewPoint) []PercentagePoint {
	out := make([]PercentagePoint, len(points))
	for i, p := range points {
		p.TotalStudents = nonNegative(p.TotalStudents)
		p.Present = nonNegative(p.Present)
		p.Absent = nonNegative(p.Absent)
		p.CheckIns = nonNegative(p.CheckIns)
		p.CheckOuts = nonNegative(p.CheckOuts)
		out[i] = PercentagePoint{
			DailyOverviewPoint:   p,
			AttendancePercentage: percent(p.Present, p.TotalStudents),
		}
	}
	return out
}

// ComputeTodaySnapshot combines the today summary with the enrolled count.
func ComputeTodaySnapshot(s TodaySummary, totalStudents int) TodaySnapshot {
	attended := nonNegative(s.Attended)
	late := nonNegative(s.Late)
	total := nonNegative(totalStudents)
	present := attended + late
	gap := total - present
	return TodaySnapshot{
		Date:          s.Date,
		Attended:      attended,
		Late:          late,
		CheckIns:      nonNegative(s.CheckIns),
		CheckOuts:     nonNegative(s.CheckOuts),
		TotalStudents: total,
		Present:       present,
		Absent:        max(0, gap),
		Rate:          percent(present, total),
		Inconsistent:  gap < 0,
	}
}

// WeekRange returns the Sunday-to-Saturday week offset weeks before now, in
// now's location. End is the last nanosecond of Saturday. Negative offsets
// are treated as the current week.
func WeekRange(now time.Time, offset int) (start, end time.Time) {
	if offset < 0 {
		offset = 0
	}
	ref := now.AddDate(0, 0, -7*offset)
	y, m, d := ref.Date()
	start = time.Date(y, m, d-int(ref.Weekday()), 0, 0, 0, 0, ref.Location())
	end = start.AddDate(0, 0, 7).Add(-time.Nanosecond)
	return start, end
}

var isoPrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`)

// Layouts used by exports and tables.
const (
	ReportLayout = "02/01/2006 15:04"
	DateLayout   = "2006-01-02"
)

// FormatTimestamp renders an ISO-8601 timestamp with the wall clock it was
// recorded in, ignoring any offset. Empty input yields "-" and anything that
// does not start with an ISO date-time is returned unchanged.
func FormatTimestamp(raw, layout string) string {
	if raw == "" {
		return "-"
	}
	prefix := isoPrefix.FindString(raw)
	if prefix == "" {
		return raw
	}
	t, err := time.Parse("2006-01-02T15:04:05", prefix)
	if err != nil {
		return raw
	}
	return t.Format(layout)
}

// FormatDate renders a YYYY-MM-DD (or longer ISO) value with layout.
func FormatDate(raw, layout string) string {
	if len(raw) < len(DateLayout) {
		return raw
	}
	t, err := time.Parse(DateLayout, raw[:len(DateLayout)])
	if err != nil {
		return raw
	}
	return t.Format(layout)
}
