package report

import (
	"fmt"
	"strconv"
)

// page is a direction-neutral description of a tabular document.
type page struct {
	title   string
	info    []string
	summary []string
	columns []column
	rows    [][]string
	// total is shown in the footer when set.
	total    int
	hasTotal bool
}

type column struct {
	label string
	width int
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (d AttendanceReport) layout(ls labels) page {
	p := page{title: ls.reportTitle}
	p.info = append(p.info, fmt.Sprintf("%s: %s - %s", ls.dateRange, d.DateFrom, d.DateTo))
	if d.Filters.Branch != "" {
		p.info = append(p.info, ls.branch+": "+d.Filters.Branch)
	}
	if d.Filters.Grade != "" {
		p.info = append(p.info, ls.grade+": "+ls.gradeLabel(d.Filters.Grade))
	}
	if d.Filters.Level != "" {
		p.info = append(p.info, ls.level+": "+d.Filters.Level)
	}
	if d.Filters.Class != "" {
		p.info = append(p.info, ls.class+": "+d.Filters.Class)
	}

	s := d.Summary
	p.summary = []string{
		fmt.Sprintf("%s: %d", ls.totalStudents, s.TotalStudents),
		fmt.Sprintf("%s: %d", ls.present, s.Present),
		fmt.Sprintf("%s: %d", ls.late, s.Late),
		fmt.Sprintf("%s: %d", ls.absent, s.Absent),
		fmt.Sprintf("%s: %s%%", ls.attendanceRate, strconv.FormatFloat(s.AttendanceRate, 'f', -1, 64)),
	}

	p.columns = []column{
		{ls.studentName, 3}, {ls.studentID, 2}, {ls.branch, 2}, {ls.grade, 2},
		{ls.level, 1}, {ls.class, 2}, {ls.status, 2}, {ls.firstCheckIn, 2}, {ls.checkInCount, 2},
	}
	for _, r := range d.Rows {
		p.rows = append(p.rows, []string{
			r.Name,
			orDash(r.IDNumber),
			orDash(r.Branch),
			orDash(ls.gradeLabel(r.Grade)),
			orDash(r.Level),
			orDash(r.Class),
			ls.statusLabel(r.StatusCode),
			orDash(r.FirstCheckIn),
			strconv.Itoa(r.CheckIns),
		})
	}
	return p
}

func (d RecordsListing) layout(ls labels) page {
	p := page{title: ls.recordsTitle, total: d.Total, hasTotal: true}
	f := d.Filters
	add := func(label, v string) {
		if v != "" {
			p.info = append(p.info, label+": "+v)
		}
	}
	if f.DateFrom != "" || f.DateTo != "" {
		p.info = append(p.info, fmt.Sprintf("%s: %s - %s", ls.dateRange, orDash(f.DateFrom), orDash(f.DateTo)))
	}
	add(ls.branch, f.Branch)
	if f.Grade != "" {
		add(ls.grade, ls.gradeLabel(f.Grade))
	}
	add(ls.level, f.Level)
	add(ls.class, f.Class)
	if f.Status != "" {
		add(ls.status, ls.statusLabel(f.Status))
	}
	if f.Type != "" {
		add(ls.kind, ls.typeLabel(f.Type))
	}
	add(ls.search, f.Search)

	p.columns = []column{
		{ls.name, 3}, {ls.kind, 2}, {ls.status, 2}, {ls.dateTime, 3}, {ls.branch, 2},
		{ls.grade, 2}, {ls.level, 1}, {ls.class, 1}, {ls.device, 2},
	}
	for _, r := range d.Rows {
		device := r.Device
		if device == "" {
			device = ls.notAvailable
		}
		p.rows = append(p.rows, []string{
			orDash(r.Student),
			ls.typeLabel(r.TypeCode),
			ls.statusLabel(r.StatusCode),
			orDash(r.Timestamp),
			orDash(r.Branch),
			orDash(ls.gradeLabel(r.Grade)),
			orDash(r.Level),
			orDash(r.Class),
			device,
		})
	}
	return p
}

// footer builds the page-number pattern. The {current} and {total}
// placeholders are filled in by the PDF engine, so they are kept out of
// shaping.
func (p page) footer(ls labels, dir Direction) string {
	if dir == RTL {
		s := "{total} " + Shape(ls.of, RTL) + " {current} " + Shape(ls.page, RTL)
		if p.hasTotal {
			s += " | " + strconv.Itoa(p.total) + " :" + Shape(ls.totalRecords, RTL)
		}
		return s
	}
	s := ls.page + " {current} " + ls.of + " {total}"
	if p.hasTotal {
		s = fmt.Sprintf("%s: %d | %s", ls.totalRecords, p.total, s)
	}
	return s
}
