package backend

// Page is the paginated list envelope returned by every collection.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// Branch is a school branch.
type Branch struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Student mirrors the backend student serializer.
type Student struct {
	ID          int     `json:"id"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	FullName    string  `json:"full_name"`
	StudentID   string  `json:"student_id"`
	Grade       string  `json:"grade"`
	Level       *int    `json:"level"`
	ClassName   string  `json:"class_name"`
	Gender      string  `json:"gender"`
	DateOfBirth string  `json:"date_of_birth"`
	Branch      *Branch `json:"branch"`
	IsActive    bool    `json:"is_active"`
}

// Parent is a guardian linked to students.
type Parent struct {
	ID          int    `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
}

// Device is a fingerprint terminal.
type Device struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	Model         string  `json:"model"`
	IPAddress     string  `json:"ip_address"`
	Port          int     `json:"port"`
	SerialNumber  *string `json:"serial_number"`
	Branch        *Branch `json:"branch"`
	GradeCategory string  `json:"grade_category"`
	Status        string  `json:"status"`
	LastSync      *string `json:"last_sync"`
	IsConnected   bool    `json:"is_connected"`
}

// Attendance types and statuses as sent by the backend.
const (
	CheckIn  = "CHECK_IN"
	CheckOut = "CHECK_OUT"

	StatusAttended = "ATTENDED"
	StatusLate     = "LATE"
	StatusAbsent   = "ABSENT"
)

// AttendanceRecord is a single check-in or check-out. Timestamp keeps the
// device's UTC offset exactly as the backend sent it.
type AttendanceRecord struct {
	ID             int      `json:"id"`
	Student        *Student `json:"student"`
	Device         *Device  `json:"device"`
	AttendanceType string   `json:"attendance_type"`
	Timestamp      string   `json:"timestamp"`
	Status         string   `json:"status"`
	IsSynced       bool     `json:"is_synced"`
	Notes          string   `json:"notes"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

// SMSLog is a notification sent to a parent.
type SMSLog struct {
	ID            int               `json:"id"`
	Student       *Student          `json:"student"`
	Parent        *Parent           `json:"parent"`
	Attendance    *AttendanceRecord `json:"attendance"`
	PhoneNumber   string            `json:"phone_number"`
	Message       string            `json:"message"`
	Status        string            `json:"status"`
	DisplayStatus string            `json:"display_status"`
	ErrorMessage  string            `json:"error_message"`
	MessageID     string            `json:"message_id"`
	SentAt        *string           `json:"sent_at"`
	DeliveredAt   *string           `json:"delivered_at"`
	CreatedAt     string            `json:"created_at"`
}

// User is a console operator account.
type User struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

// AttendanceSettings holds the attendance and lateness windows.
type AttendanceSettings struct {
	ID                        int    `json:"id"`
	AttendanceStartTime       string `json:"attendance_start_time"`
	AttendanceEndTime         string `json:"attendance_end_time"`
	LatenessStartTime         string `json:"lateness_start_time"`
	LatenessEndTime           string `json:"lateness_end_time"`
	SMSTemplate               string `json:"sms_template"`
	SyncFrequencyHours        int    `json:"sync_frequency_hours"`
	SyncFrequencyMinutes      int    `json:"sync_frequency_minutes"`
	SyncFrequencySeconds      int    `json:"sync_frequency_seconds"`
	SyncFrequencyTotalSeconds int    `json:"sync_frequency_total_seconds"`
}

// TodaySummary is the backend's "today" aggregate. Counts are unique students
// by best status, except CheckOuts which counts records.
type TodaySummary struct {
	Date         string `json:"date"`
	CheckIns     int    `json:"check_ins"`
	CheckOuts    int    `json:"check_outs"`
	Attended     int    `json:"attended"`
	Late         int    `json:"late"`
	TotalRecords int    `json:"total_records"`
}

// OverviewDay is one bucket of the overview payload.
type OverviewDay struct {
	Date          string `json:"date"`
	Day           int    `json:"day"`
	DateLabel     string `json:"date_label"`
	Present       int    `json:"present"`
	Absent        int    `json:"absent"`
	CheckIns      int    `json:"check_ins"`
	CheckOuts     int    `json:"check_outs"`
	TotalStudents int    `json:"total_students"`
}

// OverviewSummary aggregates an overview window.
type OverviewSummary struct {
	TotalPresent   int     `json:"total_present"`
	TotalAbsent    int     `json:"total_absent"`
	AvgPresent     float64 `json:"avg_present"`
	AvgAbsent      float64 `json:"avg_absent"`
	AttendanceRate float64 `json:"attendance_rate"`
}

// Overview is the backend-computed payload, pre-bucketed by day.
type Overview struct {
	Period        string          `json:"period"`
	StartDate     string          `json:"start_date"`
	EndDate       string          `json:"end_date"`
	TotalStudents int             `json:"total_students"`
	DailyData     []OverviewDay   `json:"daily_data"`
	Summary       OverviewSummary `json:"summary"`
}

// ReportFilters echoes the filters the report was computed with.
type ReportFilters struct {
	BranchID *string `json:"branch_id"`
	Grade    *string `json:"grade"`
	Level    *string `json:"level"`
	Class    *string `json:"class"`
}

// ReportSummary holds report-wide counts.
type ReportSummary struct {
	TotalStudents  int     `json:"total_students"`
	Present        int     `json:"present"`
	Late           int     `json:"late"`
	Absent         int     `json:"absent"`
	AttendanceRate float64 `json:"attendance_rate"`
}

// ReportStudent is one student line of the attendance report.
type ReportStudent struct {
	StudentID            int     `json:"student_id"`
	StudentName          string  `json:"student_name"`
	StudentIDNumber      string  `json:"student_id_number"`
	Grade                string  `json:"grade"`
	Level                *int    `json:"level"`
	ClassName            string  `json:"class_name"`
	Branch               Branch  `json:"branch"`
	HasAttended          bool    `json:"has_attended"`
	AttendanceStatus     string  `json:"attendance_status"`
	AttendanceStatusCode string  `json:"attendance_status_code"`
	FirstCheckIn         *string `json:"first_check_in"`
	LastCheckOut         *string `json:"last_check_out"`
	CheckInCount         int     `json:"check_in_count"`
	CheckOutCount        int     `json:"check_out_count"`
}

// AttendanceReport is the per-student report payload.
type AttendanceReport struct {
	DateFrom string          `json:"date_from"`
	DateTo   string          `json:"date_to"`
	Filters  ReportFilters   `json:"filters"`
	Summary  ReportSummary   `json:"summary"`
	Students []ReportStudent `json:"students"`
}

// UploadResult is the backend's bulk upload answer.
type UploadResult struct {
	Message        string   `json:"message"`
	Created        int      `json:"created"`
	Updated        int      `json:"updated"`
	StudentsLinked int      `json:"students_linked,omitempty"`
	Errors         []string `json:"errors"`
	TotalErrors    int      `json:"total_errors"`
}
