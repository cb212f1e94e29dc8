package report

// Language selects the label set and the text direction of a document.
type Language string

const (
	English Language = "en"
	Arabic  Language = "ar"
)

// ParseLanguage maps a request value to a supported language, defaulting to English.
func ParseLanguage(s string) Language {
	if len(s) >= 2 && s[:2] == "ar" {
		return Arabic
	}
	return English
}

// Direction is the reading direction documents are laid out in.
type Direction string

const (
	LTR Direction = "ltr"
	RTL Direction = "rtl"
)

func (l Language) Direction() Direction {
	if l == Arabic {
		return RTL
	}
	return LTR
}

type labels struct {
	reportTitle, recordsTitle string
	dateRange, generatedOn    string
	summary                   string

	studentName, studentID, branch, grade, level, class string
	status, firstCheckIn, checkInCount                  string
	name, kind, dateTime, device, search                string

	totalStudents, present, late, absent, attendanceRate string
	checkIn, checkOut                                    string
	attended, notAvailable                               string
	totalRecords, page, of                               string

	grades map[string]string
}

var labelSets = map[Language]labels{
	English: {
		reportTitle:    "Attendance Report",
		recordsTitle:   "Attendance Records",
		dateRange:      "Date Range",
		generatedOn:    "Generated on",
		summary:        "Summary",
		studentName:    "Student Name",
		studentID:      "Student ID",
		branch:         "Branch",
		grade:          "Grade",
		level:          "Level",
		class:          "Class",
		status:         "Status",
		firstCheckIn:   "First Check-in",
		checkInCount:   "Check-ins",
		name:           "Name",
		kind:           "Type",
		dateTime:       "Date & Time",
		device:         "Device",
		search:         "Search",
		totalStudents:  "Total Students",
		present:        "Present",
		late:           "Late",
		absent:         "Absent",
		attendanceRate: "Attendance Rate",
		checkIn:        "Check In",
		checkOut:       "Check Out",
		attended:       "Attended",
		notAvailable:   "N/A",
		totalRecords:   "Total records",
		page:           "Page",
		of:             "of",
		grades: map[string]string{
			"KINDERGARTEN": "Kindergarten",
			"PRIMARY":      "Primary",
			"SECONDARY":    "Secondary",
			"HIGH_SCHOOL":  "High School",
		},
	},
	Arabic: {
		reportTitle:    "تقرير الحضور",
		recordsTitle:   "سجلات الحضور",
		dateRange:      "الفترة الزمنية",
		generatedOn:    "تاريخ الإنشاء",
		summary:        "الملخص",
		studentName:    "اسم الطالب",
		studentID:      "رقم الطالب",
		branch:         "الفرع",
		grade:          "المرحلة",
		level:          "المستوى",
		class:          "الفصل",
		status:         "الحالة",
		firstCheckIn:   "أول دخول",
		checkInCount:   "مرات الدخول",
		name:           "الاسم",
		kind:           "النوع",
		dateTime:       "التاريخ والوقت",
		device:         "الجهاز",
		search:         "بحث",
		totalStudents:  "إجمالي الطلاب",
		present:        "حاضر",
		late:           "متأخر",
		absent:         "غائب",
		attendanceRate: "نسبة الحضور",
		checkIn:        "دخول",
		checkOut:       "خروج",
		attended:       "حاضر",
		notAvailable:   "غير متوفر",
		totalRecords:   "إجمالي السجلات",
		page:           "صفحة",
		of:             "من",
		grades: map[string]string{
			"KINDERGARTEN": "روضة",
			"PRIMARY":      "ابتدائي",
			"SECONDARY":    "متوسط",
			"HIGH_SCHOOL":  "ثانوي",
		},
	},
}

func labelsFor(l Language) labels {
	if ls, ok := labelSets[l]; ok {
		return ls
	}
	return labelSets[English]
}

func (ls labels) statusLabel(code string) string {
	switch code {
	case "ATTENDED":
		return ls.attended
	case "LATE":
		return ls.late
	case "ABSENT":
		return ls.absent
	case "":
		return "-"
	}
	return code
}

func (ls labels) typeLabel(code string) string {
	if code == "CHECK_IN" {
		return ls.checkIn
	}
	return ls.checkOut
}

func (ls labels) gradeLabel(code string) string {
	if g, ok := ls.grades[code]; ok {
		return g
	}
	return code
}
