package report

import (
	"bytes"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilenameUsesGenerationDate(t *testing.T) {
	generated := time.Date(2024, 5, 9, 23, 10, 0, 0, time.UTC)
	name := Filename(KindAttendanceReport, generated)
	assert.Equal(t, "attendance-report-2024-05-09.pdf", name)
	assert.Regexp(t, regexp.MustCompile(`^attendance-report-\d{4}-\d{2}-\d{2}\.pdf$`), name)
	assert.Equal(t, "attendance-records-2024-05-09.pdf", Filename(KindAttendanceRecords, generated))
}

func TestShape(t *testing.T) {
	tests := []struct {
		name string
		in   string
		dir  Direction
		want string
	}{
		{
			name: "lam alef ligature and visual order",
			in:   "سلام",
			dir:  RTL,
			want: string([]rune{0xFEE1, 0xFEFC, 0xFEB3}),
		},
		{
			name: "digits keep reading order",
			in:   "محمد 12",
			dir:  RTL,
			want: string([]rune{'1', '2', ' ', 0xFEAA, 0xFEE4, 0xFEA4, 0xFEE3}),
		},
		{
			name: "brackets are mirrored",
			in:   "(سلام)",
			dir:  RTL,
			want: string([]rune{'(', 0xFEE1, 0xFEFC, 0xFEB3, ')'}),
		},
		{
			name: "arabic run inside latin line",
			in:   "Branch: فرع",
			dir:  LTR,
			want: "Branch: " + string([]rune{0xFEC9, 0xFEAE, 0xFED3}),
		},
		{
			name: "latin first in arabic document",
			in:   "John أحمد",
			dir:  RTL,
			want: string([]rune{0xFEAA, 0xFEE4, 0xFEA3, 0xFE83}) + " John",
		},
		{
			name: "arabic first in english document",
			in:   "أحمد John",
			dir:  LTR,
			want: string([]rune{0xFEAA, 0xFEE4, 0xFEA3, 0xFE83}) + " John",
		},
		{
			name: "number after arabic in english document",
			in:   "محمد 12 - Gate",
			dir:  LTR,
			want: "12 " + string([]rune{0xFEAA, 0xFEE4, 0xFEA4, 0xFEE3}) + " - Gate",
		},
		{
			name: "class name with number",
			in:   "الصف 12",
			dir:  RTL,
			want: "12 " + string([]rune{0xFED2, 0xFEBC, 0xFEDF, 0xFE8D}),
		},
		{
			name: "latin text untouched",
			in:   "Amina 01/05/2024 07:55",
			dir:  RTL,
			want: "Amina 01/05/2024 07:55",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Shape(tt.in, tt.dir))
		})
	}
}

func TestFooterPattern(t *testing.T) {
	ls := labelsFor(English)
	p := RecordsListing{Total: 42}.layout(ls)
	assert.Equal(t, "Total records: 42 | Page {current} of {total}", p.footer(ls, LTR))

	p = AttendanceReport{}.layout(ls)
	assert.Equal(t, "Page {current} of {total}", p.footer(ls, LTR))

	ar := labelsFor(Arabic)
	footer := RecordsListing{Total: 7}.layout(ar).footer(ar, RTL)
	assert.Contains(t, footer, "{current}")
	assert.Contains(t, footer, "{total}")
}

func sampleReport(lang Language) AttendanceReport {
	return AttendanceReport{
		Language:    lang,
		GeneratedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		DateFrom:    "01/05/2024",
		DateTo:      "01/05/2024",
		Filters:     ReportFilters{Branch: "North", Grade: "PRIMARY"},
		Summary:     Summary{TotalStudents: 2, Present: 1, Absent: 1, AttendanceRate: 50},
		Rows: []StudentRow{
			{Name: "Amina Yusuf", IDNumber: "S-001", Branch: "North", Grade: "PRIMARY", Level: "1", Class: "1A", StatusCode: "ATTENDED", FirstCheckIn: "01/05/2024 07:55", CheckIns: 1},
			{Name: "Omar Ali", IDNumber: "S-002", Branch: "North", Grade: "PRIMARY", StatusCode: "ABSENT"},
		},
	}
}

func TestRenderLTRWithBuiltinFont(t *testing.T) {
	r := NewRenderer(Options{})

	out, err := r.Render(sampleReport(English))
	require.NoError(t, err)
	assert.Equal(t, "attendance-report-2024-05-01.pdf", out.Filename)
	assert.True(t, bytes.HasPrefix(out.Bytes, []byte("%PDF")))

	listing := RecordsListing{
		Language:    English,
		GeneratedAt: time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC),
		Filters:     RecordFilters{Search: "amina", Status: "LATE"},
		Rows: []RecordRow{
			{Student: "Amina Yusuf", TypeCode: "CHECK_IN", StatusCode: "LATE", Timestamp: "02/05/2024 08:20", Device: "Gate 1"},
		},
		Total: 1,
	}
	out, err = r.Render(listing)
	require.NoError(t, err)
	assert.Equal(t, "attendance-records-2024-05-02.pdf", out.Filename)
	assert.True(t, bytes.HasPrefix(out.Bytes, []byte("%PDF")))
}

func TestRenderRTLRequiresFont(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"not configured", Options{}},
		{"missing file", Options{FontPath: "/nonexistent/NotoNaskhArabic.ttf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRenderer(tt.opts).Render(sampleReport(Arabic))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrFontUnavailable))
		})
	}
}

func TestRenderRTLWithFont(t *testing.T) {
	r := NewRenderer(Options{FontPath: filepath.Join("testdata", "DejaVuSans.ttf")})

	out, err := r.Render(sampleReport(Arabic))
	require.NoError(t, err)
	assert.Equal(t, "attendance-report-2024-05-01.pdf", out.Filename)
	assert.True(t, bytes.HasPrefix(out.Bytes, []byte("%PDF")))

	listing := RecordsListing{
		Language:    Arabic,
		GeneratedAt: time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC),
		Filters:     RecordFilters{Search: "أحمد", Status: "LATE"},
		Total:       200,
	}
	for i := 0; i < 200; i++ {
		listing.Rows = append(listing.Rows, RecordRow{
			Student:    "أحمد Yusuf",
			Branch:     "الفرع الشمالي",
			TypeCode:   "CHECK_IN",
			StatusCode: "LATE",
			Timestamp:  "02/05/2024 08:20",
			Device:     "Gate 1",
		})
	}
	out, err = r.Render(listing)
	require.NoError(t, err)
	assert.Equal(t, "attendance-records-2024-05-02.pdf", out.Filename)
	assert.True(t, bytes.HasPrefix(out.Bytes, []byte("%PDF")))
}

func TestReportLayoutLocalizesCodes(t *testing.T) {
	p := sampleReport(English).layout(labelsFor(English))
	require.Len(t, p.rows, 2)
	assert.Equal(t, "Attended", p.rows[0][6])
	assert.Equal(t, "Primary", p.rows[0][3])
	assert.Equal(t, "-", p.rows[1][7], "missing check-in renders as a dash")
	assert.Contains(t, p.info, "Grade: Primary")
	assert.Contains(t, p.summary, "Attendance Rate: 50%")

	ar := sampleReport(Arabic).layout(labelsFor(Arabic))
	assert.Equal(t, "حاضر", ar.rows[0][6])
	assert.Equal(t, "ابتدائي", ar.rows[0][3])
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, Arabic, ParseLanguage("ar-SA"))
	assert.Equal(t, English, ParseLanguage(""))
	assert.Equal(t, RTL, Arabic.Direction())
	assert.Equal(t, Inline, ParseDisposition("preview"))
	assert.Equal(t, Attachment, ParseDisposition(""))
	assert.Equal(t, `inline; filename="x.pdf"`, Inline.ContentDisposition("x.pdf"))

	_, err := ParseKind("payroll")
	assert.Error(t, err)
}
