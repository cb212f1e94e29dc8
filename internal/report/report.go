// Package report renders attendance reports and record listings as PDF in
// either reading direction.
package report

import (
	"errors"
	"fmt"
	"time"
)

// Kind names a report type. It is also the filename stem.
type Kind string

const (
	KindAttendanceReport  Kind = "attendance-report"
	KindAttendanceRecords Kind = "attendance-records"
)

// ParseKind validates a request value.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindAttendanceReport, KindAttendanceRecords:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown report kind %q", s)
}

// ErrFontUnavailable is returned when right-to-left output is requested and
// no Unicode font can be loaded.
var ErrFontUnavailable = errors.New("report: unicode font unavailable")

// Filename is "<kind>-<YYYY-MM-DD>.pdf" using the generation date, never the
// date range the report covers.
func Filename(kind Kind, generated time.Time) string {
	return fmt.Sprintf("%s-%s.pdf", kind, generated.Format("2006-01-02"))
}

// Disposition selects how the browser should treat the PDF.
type Disposition string

const (
	Inline     Disposition = "inline"
	Attachment Disposition = "attachment"
)

func ParseDisposition(s string) Disposition {
	if s == string(Inline) || s == "preview" {
		return Inline
	}
	return Attachment
}

// ContentDisposition renders the header value for filename.
func (d Disposition) ContentDisposition(filename string) string {
	return fmt.Sprintf(`%s; filename="%s"`, d, filename)
}

// Output is a rendered document.
type Output struct {
	Filename string
	Bytes    []byte
}

// ReportFilters are display values of the filters a report was computed with.
type ReportFilters struct {
	Branch string
	Grade  string // grade code, e.g. PRIMARY
	Level  string
	Class  string
}

// Summary holds report-wide counts.
type Summary struct {
	TotalStudents  int
	Present        int
	Late           int
	Absent         int
	AttendanceRate float64
}

// StudentRow is one line of the attendance report.
type StudentRow struct {
	Name         string
	IDNumber     string
	Branch       string
	Grade        string
	Level        string
	Class        string
	StatusCode   string
	FirstCheckIn string
	CheckIns     int
}

// AttendanceReport is the per-student report for a date range.
type AttendanceReport struct {
	Language    Language
	GeneratedAt time.Time
	DateFrom    string
	DateTo      string
	Filters     ReportFilters
	Summary     Summary
	Rows        []StudentRow
}

// RecordFilters are display values of the filters a listing was exported with.
type RecordFilters struct {
	Branch   string
	Grade    string
	Level    string
	Class    string
	Status   string
	Type     string
	DateFrom string
	DateTo   string
	Search   string
}

// RecordRow is one attendance record of the listing.
type RecordRow struct {
	Student    string
	TypeCode   string
	StatusCode string
	Timestamp  string
	Branch     string
	Grade      string
	Level      string
	Class      string
	Device     string
}

// RecordsListing is a filtered attendance record export.
type RecordsListing struct {
	Language    Language
	GeneratedAt time.Time
	Filters     RecordFilters
	Rows        []RecordRow
	// Total is the backend's count, which can exceed len(Rows).
	Total int
}

// Document is anything the renderer can lay out.
type Document interface {
	Kind() Kind
	Lang() Language
	Generated() time.Time
	layout(ls labels) page
}

func (d AttendanceReport) Kind() Kind           { return KindAttendanceReport }
func (d AttendanceReport) Lang() Language       { return d.Language }
func (d AttendanceReport) Generated() time.Time { return d.GeneratedAt }

func (d RecordsListing) Kind() Kind           { return KindAttendanceRecords }
func (d RecordsListing) Lang() Language       { return d.Language }
func (d RecordsListing) Generated() time.Time { return d.GeneratedAt }
