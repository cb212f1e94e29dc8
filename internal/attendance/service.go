package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"schoolhub/internal/backend"
	"schoolhub/internal/query"
	"schoolhub/internal/report"
)

// ExportPageSize is how many records a listing export asks for in one page.
const ExportPageSize = 10000

// Service builds dashboard and report views from backend data.
type Service struct {
	api   *backend.Client
	cache *query.Client
	loc   *time.Location
	log   *zap.Logger
	now   func() time.Time
}

// NewService wires the service. loc is the school's time zone, used for week
// boundaries and generation dates.
func NewService(api *backend.Client, cache *query.Client, loc *time.Location, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{api: api, cache: cache, loc: loc, log: log, now: time.Now}
}

// DashboardParams selects the dashboard view.
type DashboardParams struct {
	BranchID   string
	WeekOffset int
}

// Week is a date window, inclusive, as YYYY-MM-DD.
type Week struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Dashboard is the landing page payload.
type Dashboard struct {
	Today         TodaySnapshot              `json:"today"`
	Week          Week                       `json:"week"`
	Weekly        []PercentagePoint          `json:"weekly"`
	Summary       backend.OverviewSummary    `json:"summary"`
	TotalStudents int                        `json:"total_students"`
	ActiveDevices int                        `json:"active_devices"`
	Recent        []backend.AttendanceRecord `json:"recent"`
}

func branchPart(id string) string { return "branch=" + id }

// Dashboard fetches the five dashboard queries concurrently and derives the
// today snapshot and weekly series from them. Derived values are never cached.
func (s *Service) Dashboard(ctx context.Context, p DashboardParams) (Dashboard, error) {
	start, end := WeekRange(s.now().In(s.loc), p.WeekOffset)
	week := Week{Start: start.Format(DateLayout), End: end.Format(DateLayout)}
	branch := branchPart(p.BranchID)

	var (
		today    backend.TodaySummary
		students int
		devices  int
		recent   backend.Page[backend.AttendanceRecord]
		overview backend.Overview
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		today, err = query.Fetch(gctx, s.cache, query.Key{"attendance", "today", branch}, func(ctx context.Context) (backend.TodaySummary, error) {
			return s.api.TodaySummary(ctx, p.BranchID)
		})
		return err
	})
	g.Go(func() (err error) {
		students, err = query.Fetch(gctx, s.cache, query.Key{"students", "count", branch}, func(ctx context.Context) (int, error) {
			return s.api.Count(ctx, backend.Students, map[string]string{"branch": p.BranchID})
		})
		return err
	})
	g.Go(func() (err error) {
		devices, err = query.Fetch(gctx, s.cache, query.Key{"devices", "count", branch}, func(ctx context.Context) (int, error) {
			return s.api.Count(ctx, backend.Devices, map[string]string{"branch": p.BranchID})
		})
		return err
	})
	g.Go(func() (err error) {
		recent, err = query.Fetch(gctx, s.cache, query.Key{"attendance", "recent", branch}, func(ctx context.Context) (backend.Page[backend.AttendanceRecord], error) {
			return backend.List[backend.AttendanceRecord](ctx, s.api, backend.Records, backend.ListParams{
				PageSize: 10,
				Filters:  map[string]string{"branch": p.BranchID},
			})
		})
		return err
	})
	g.Go(func() (err error) {
		key := query.Key{"attendance", "overview", branch, week.Start, week.End}
		overview, err = query.Fetch(gctx, s.cache, key, func(ctx context.Context) (backend.Overview, error) {
			return s.api.AttendanceOverview(ctx, "week", backend.ReportParams{
				BranchID: p.BranchID,
				DateFrom: week.Start,
				DateTo:   week.End,
			})
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	snap := ComputeTodaySnapshot(TodaySummary{
		Date:      today.Date,
		Attended:  today.Attended,
		Late:      today.Late,
		CheckIns:  today.CheckIns,
		CheckOuts: today.CheckOuts,
	}, students)
	if snap.Inconsistent {
		s.log.Warn("today summary exceeds enrolment",
			zap.String("branch", p.BranchID),
			zap.Int("present", snap.Present),
			zap.Int("total_students", snap.TotalStudents))
	}

	total := overview.TotalStudents
	if total == 0 {
		total = students
	}
	return Dashboard{
		Today:         snap,
		Week:          week,
		Weekly:        ComputeWeeklySeries(overviewPoints(overview.DailyData)),
		Summary:       overview.Summary,
		TotalStudents: total,
		ActiveDevices: devices,
		Recent:        recent.Results,
	}, nil
}

func overviewPoints(days []backend.OverviewDay) []DailyOverviewPoint {
	out := make([]DailyOverviewPoint, len(days))
	for i, d := range days {
		out[i] = DailyOverviewPoint{
			Date:          d.Date,
			Day:           d.Day,
			DateLabel:     d.DateLabel,
			TotalStudents: d.TotalStudents,
			Present:       d.Present,
			Absent:        d.Absent,
			CheckIns:      d.CheckIns,
			CheckOuts:     d.CheckOuts,
		}
	}
	return out
}

// ReportFilter narrows the attendance report.
type ReportFilter struct {
	BranchID  string `json:"branch_id,omitempty"`
	Grade     string `json:"grade,omitempty"`
	Level     string `json:"level,omitempty"`
	ClassName string `json:"class,omitempty"`
	DateFrom  string `json:"date_from,omitempty"`
	DateTo    string `json:"date_to,omitempty"`
}

// withDefaults fills an empty date range with today.
func (f ReportFilter) withDefaults(today string) ReportFilter {
	if f.DateFrom == "" {
		f.DateFrom = today
	}
	if f.DateTo == "" {
		f.DateTo = f.DateFrom
	}
	return f
}

func (f ReportFilter) params() backend.ReportParams {
	return backend.ReportParams{
		BranchID:  f.BranchID,
		Grade:     f.Grade,
		Level:     f.Level,
		ClassName: f.ClassName,
		DateFrom:  f.DateFrom,
		DateTo:    f.DateTo,
	}
}

// Report returns the per-student attendance report.
func (s *Service) Report(ctx context.Context, f ReportFilter) (backend.AttendanceReport, error) {
	f = f.withDefaults(s.now().In(s.loc).Format(DateLayout))
	key := query.Key{"attendance", "report", branchPart(f.BranchID), "grade=" + f.Grade, "level=" + f.Level, "class=" + f.ClassName, f.DateFrom, f.DateTo}
	return query.Fetch(ctx, s.cache, key, func(ctx context.Context) (backend.AttendanceReport, error) {
		return s.api.AttendanceReport(ctx, f.params())
	})
}

// ReportDocument fetches the report and lays it out for rendering.
func (s *Service) ReportDocument(ctx context.Context, f ReportFilter, lang report.Language) (report.AttendanceReport, error) {
	rep, err := s.Report(ctx, f)
	if err != nil {
		return report.AttendanceReport{}, err
	}
	branch, err := s.branchName(ctx, f.BranchID)
	if err != nil {
		return report.AttendanceReport{}, err
	}

	doc := report.AttendanceReport{
		Language:    lang,
		GeneratedAt: s.now().In(s.loc),
		DateFrom:    FormatDate(rep.DateFrom, "02/01/2006"),
		DateTo:      FormatDate(rep.DateTo, "02/01/2006"),
		Filters: report.ReportFilters{
			Branch: branch,
			Grade:  deref(rep.Filters.Grade),
			Level:  deref(rep.Filters.Level),
			Class:  deref(rep.Filters.Class),
		},
		Summary: report.Summary{
			TotalStudents:  rep.Summary.TotalStudents,
			Present:        rep.Summary.Present,
			Late:           rep.Summary.Late,
			Absent:         rep.Summary.Absent,
			AttendanceRate: rep.Summary.AttendanceRate,
		},
		Rows: make([]report.StudentRow, 0, len(rep.Students)),
	}
	for _, st := range rep.Students {
		doc.Rows = append(doc.Rows, report.StudentRow{
			Name:         st.StudentName,
			IDNumber:     st.StudentIDNumber,
			Branch:       st.Branch.Name,
			Grade:        st.Grade,
			Level:        levelString(st.Level),
			Class:        st.ClassName,
			StatusCode:   st.AttendanceStatusCode,
			FirstCheckIn: timestampOrEmpty(st.FirstCheckIn),
			CheckIns:     st.CheckInCount,
		})
	}
	return doc, nil
}

// RecordFilter narrows the attendance record listing.
type RecordFilter struct {
	BranchID  string `json:"branch,omitempty"`
	Grade     string `json:"grade,omitempty"`
	Level     string `json:"level,omitempty"`
	ClassName string `json:"class,omitempty"`
	Status    string `json:"status,omitempty"`
	Type      string `json:"attendance_type,omitempty"`
	DateFrom  string `json:"date_from,omitempty"`
	DateTo    string `json:"date_to,omitempty"`
	Search    string `json:"search,omitempty"`
	Ordering  string `json:"ordering,omitempty"`
}

func (f RecordFilter) listParams(page, size int) backend.ListParams {
	return backend.ListParams{
		Page:     page,
		PageSize: size,
		Search:   f.Search,
		Ordering: f.Ordering,
		Filters: map[string]string{
			"branch":          f.BranchID,
			"grade":           f.Grade,
			"level":           f.Level,
			"class":           f.ClassName,
			"status":          f.Status,
			"attendance_type": f.Type,
			"date_from":       f.DateFrom,
			"date_to":         f.DateTo,
		},
	}
}

// Records fetches every record matching f for export, in one large page.
func (s *Service) Records(ctx context.Context, f RecordFilter) (backend.Page[backend.AttendanceRecord], error) {
	return backend.List[backend.AttendanceRecord](ctx, s.api, backend.Records, f.listParams(1, ExportPageSize))
}

// RecordsDocument fetches the filtered records and lays them out for rendering.
func (s *Service) RecordsDocument(ctx context.Context, f RecordFilter, lang report.Language) (report.RecordsListing, error) {
	page, err := s.Records(ctx, f)
	if err != nil {
		return report.RecordsListing{}, err
	}
	branch, err := s.branchName(ctx, f.BranchID)
	if err != nil {
		return report.RecordsListing{}, err
	}
	doc := report.RecordsListing{
		Language:    lang,
		GeneratedAt: s.now().In(s.loc),
		Filters: report.RecordFilters{
			Branch:   branch,
			Grade:    f.Grade,
			Level:    f.Level,
			Class:    f.ClassName,
			Status:   f.Status,
			Type:     f.Type,
			DateFrom: FormatDate(f.DateFrom, "02/01/2006"),
			DateTo:   FormatDate(f.DateTo, "02/01/2006"),
			Search:   f.Search,
		},
		Total: page.Count,
		Rows:  make([]report.RecordRow, 0, len(page.Results)),
	}
	for _, rec := range page.Results {
		row := report.RecordRow{
			TypeCode:   rec.AttendanceType,
			StatusCode: rec.Status,
			Timestamp:  FormatTimestamp(rec.Timestamp, ReportLayout),
		}
		if st := rec.Student; st != nil {
			row.Student = st.FullName
			row.Grade = st.Grade
			row.Level = levelString(st.Level)
			row.Class = st.ClassName
			if st.Branch != nil {
				row.Branch = st.Branch.Name
			}
		}
		if rec.Device != nil {
			row.Device = rec.Device.Name
		}
		doc.Rows = append(doc.Rows, row)
	}
	return doc, nil
}

func (s *Service) branchName(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", nil
	}
	n, err := strconv.Atoi(id)
	if err != nil {
		return id, nil
	}
	b, err := query.Fetch(ctx, s.cache, query.Key{"branches", "item", id}, func(ctx context.Context) (backend.Branch, error) {
		return backend.Get[backend.Branch](ctx, s.api, backend.Branches, n)
	})
	if err != nil {
		return "", err
	}
	return b.Name, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func levelString(l *int) string {
	if l == nil {
		return ""
	}
	return strconv.Itoa(*l)
}

func timestampOrEmpty(ts *string) string {
	if ts == nil || *ts == "" {
		return ""
	}
	return FormatTimestamp(*ts, ReportLayout)
}

// Document builds the document of the given kind from JSON-encoded filters,
// as stored with an export job.
func (s *Service) Document(ctx context.Context, kind report.Kind, lang report.Language, filters json.RawMessage) (report.Document, error) {
	switch kind {
	case report.KindAttendanceReport:
		var f ReportFilter
		if err := decodeFilters(filters, &f); err != nil {
			return nil, err
		}
		return s.ReportDocument(ctx, f, lang)
	case report.KindAttendanceRecords:
		var f RecordFilter
		if err := decodeFilters(filters, &f); err != nil {
			return nil, err
		}
		return s.RecordsDocument(ctx, f, lang)
	default:
		return nil, fmt.Errorf("unknown report kind %q", kind)
	}
}

func decodeFilters(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode filters: %w", err)
	}
	return nil
}
