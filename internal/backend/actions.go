package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
)

// ReportParams narrows the report and overview actions.
type ReportParams struct {
	BranchID  string
	Grade     string
	Level     string
	ClassName string
	DateFrom  string // YYYY-MM-DD
	DateTo    string
}

func (p ReportParams) values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("branch_id", p.BranchID)
	set("grade", p.Grade)
	set("level", p.Level)
	set("class", p.ClassName)
	set("date_from", p.DateFrom)
	set("date_to", p.DateTo)
	return v
}

// TodaySummary fetches today's check-in totals, optionally for one branch.
func (c *Client) TodaySummary(ctx context.Context, branchID string) (TodaySummary, error) {
	q := url.Values{}
	if branchID != "" {
		q.Set("branch_id", branchID)
	}
	var out TodaySummary
	err := c.jsonRequest(ctx, http.MethodGet, Records.Name, Records.action("today_summary"), q, nil, &out)
	return out, err
}

// AttendanceOverview fetches the backend's pre-bucketed overview for a window.
// period is "week" or "month".
func (c *Client) AttendanceOverview(ctx context.Context, period string, p ReportParams) (Overview, error) {
	q := p.values()
	if period != "" {
		q.Set("period", period)
	}
	var out Overview
	err := c.jsonRequest(ctx, http.MethodGet, Records.Name, Records.action("attendance_overview"), q, nil, &out)
	return out, err
}

// AttendanceReport fetches the per-student report.
func (c *Client) AttendanceReport(ctx context.Context, p ReportParams) (AttendanceReport, error) {
	var out AttendanceReport
	err := c.jsonRequest(ctx, http.MethodGet, Records.Name, Records.action("attendance_report"), p.values(), nil, &out)
	return out, err
}

// StudentAttendance lists every record of one student.
func (c *Client) StudentAttendance(ctx context.Context, studentID int) ([]AttendanceRecord, error) {
	q := url.Values{"student_id": {strconv.Itoa(studentID)}}
	var out []AttendanceRecord
	err := c.jsonRequest(ctx, http.MethodGet, Records.Name, Records.action("student_attendance"), q, nil, &out)
	return out, err
}

// DeviceResult is the loosely typed answer of device actions.
type DeviceResult map[string]any

// SyncDeviceAttendance pulls attendance logs from a terminal into the backend.
func (c *Client) SyncDeviceAttendance(ctx context.Context, deviceID int) (DeviceResult, error) {
	var out DeviceResult
	err := c.jsonRequest(ctx, http.MethodPost, Devices.Name, Devices.itemAction(deviceID, "sync_attendance"), nil, nil, &out)
	return out, err
}

// SyncDeviceStudents pushes enrolled students to a terminal.
func (c *Client) SyncDeviceStudents(ctx context.Context, deviceID int) (DeviceResult, error) {
	var out DeviceResult
	err := c.jsonRequest(ctx, http.MethodPost, Devices.Name, Devices.itemAction(deviceID, "sync_students"), nil, nil, &out)
	return out, err
}

// TestDeviceConnection checks that a terminal answers over TCP.
func (c *Client) TestDeviceConnection(ctx context.Context, deviceID int) (DeviceResult, error) {
	var out DeviceResult
	err := c.jsonRequest(ctx, http.MethodGet, Devices.Name, Devices.itemAction(deviceID, "test_connection"), nil, nil, &out)
	return out, err
}

// SMSStatistics holds delivery counts.
type SMSStatistics struct {
	Total       int     `json:"total"`
	Sent        int     `json:"sent"`
	Failed      int     `json:"failed"`
	Pending     int     `json:"pending"`
	SuccessRate float64 `json:"success_rate"`
}

func (c *Client) SMSStatistics(ctx context.Context, filters map[string]string) (SMSStatistics, error) {
	var out SMSStatistics
	err := c.jsonRequest(ctx, http.MethodGet, SMSLogs.Name, SMSLogs.action("statistics"), ListParams{Filters: filters}.Values(), nil, &out)
	return out, err
}

// StudentClasses lists distinct class names.
func (c *Client) StudentClasses(ctx context.Context, filters map[string]string) ([]string, error) {
	var out []string
	err := c.jsonRequest(ctx, http.MethodGet, Students.Name, Students.action("classes"), ListParams{Filters: filters}.Values(), nil, &out)
	return out, err
}

// AllParents returns every parent without pagination.
func (c *Client) AllParents(ctx context.Context) ([]Parent, error) {
	var out []Parent
	err := c.jsonRequest(ctx, http.MethodGet, Parents.Name, Parents.action("all"), nil, nil, &out)
	return out, err
}

// AttendanceSettings fetches the singleton settings. The backend answers the
// collection route with a one-element array.
func (c *Client) AttendanceSettings(ctx context.Context) (AttendanceSettings, error) {
	var raw json.RawMessage
	if err := c.jsonRequest(ctx, http.MethodGet, Settings.Name, Settings.collection(), nil, nil, &raw); err != nil {
		return AttendanceSettings{}, err
	}
	var out AttendanceSettings
	if len(raw) > 0 && raw[0] == '[' {
		var list []AttendanceSettings
		if err := json.Unmarshal(raw, &list); err != nil {
			return out, errors.Wrap(err, "decode settings list")
		}
		if len(list) > 0 {
			out = list[0]
		}
		return out, nil
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return out, errors.Wrap(err, "decode settings")
		}
	}
	return out, nil
}

// UpdateAttendanceSettings patches the singleton (always id 1).
func (c *Client) UpdateAttendanceSettings(ctx context.Context, patch map[string]any) (AttendanceSettings, error) {
	var out AttendanceSettings
	err := c.jsonRequest(ctx, http.MethodPatch, Settings.Name, Settings.item(1), nil, patch, &out)
	return out, err
}
