package bulk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"schoolhub/internal/backend"
)

// MaxUploadSize caps spreadsheets accepted for import.
const MaxUploadSize = 10 << 20

// RequiredColumns lists the header cells each importable resource needs.
var RequiredColumns = map[string][]string{
	backend.Students.Name: {"first_name", "last_name", "student_id", "grade", "gender", "date_of_birth", "branch"},
	backend.Parents.Name:  {"first_name", "last_name", "email", "student_id"},
}

var (
	ErrUnsupportedFile = errors.New("Invalid file format. Please upload an Excel file (.xlsx or .xls)")
	ErrEmptySheet      = errors.New("worksheet is empty")
	ErrNotImportable   = errors.New("resource does not support bulk upload")
	ErrTooLarge        = errors.New("file is too large")
	ErrUnreadableFile  = errors.New("Could not read the spreadsheet. Please check the file and try again.")
)

// maxSheetRows bounds how much of a sheet is read.
const maxSheetRows = 100000

// MissingColumnsError is returned when the header row lacks required columns.
type MissingColumnsError struct {
	Missing []string
	Found   []string
}

func (e *MissingColumnsError) Error() string {
	return "Missing required columns: " + strings.Join(e.Missing, ", ")
}

// Uploader checks spreadsheets locally before forwarding them to the backend.
type Uploader struct {
	api *backend.Client
	log *zap.Logger
}

// NewUploader wires an uploader.
func NewUploader(api *backend.Client, log *zap.Logger) *Uploader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Uploader{api: api, log: log}
}

// Upload validates the sheet and sends the original bytes to the resource's
// bulk import. Row errors reported by the backend are logged; the counts are
// returned as is.
func (u *Uploader) Upload(ctx context.Context, r backend.Resource, filename string, file io.Reader) (backend.UploadResult, error) {
	required, ok := RequiredColumns[r.Name]
	if !ok {
		return backend.UploadResult{}, ErrNotImportable
	}
	data, err := io.ReadAll(io.LimitReader(file, MaxUploadSize+1))
	if err != nil {
		return backend.UploadResult{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxUploadSize {
		return backend.UploadResult{}, ErrTooLarge
	}
	rows, err := Validate(filename, data, required)
	if err != nil {
		return backend.UploadResult{}, err
	}

	res, err := u.api.BulkUpload(ctx, r, filename, bytes.NewReader(data))
	if err != nil {
		return backend.UploadResult{}, err
	}
	log := u.log.With(zap.String("resource", r.Name), zap.String("file", filename))
	for _, rowErr := range res.Errors {
		log.Info("bulk upload row rejected", zap.String("detail", rowErr))
	}
	log.Info("bulk upload finished",
		zap.Int("rows", rows),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("errors", res.TotalErrors))
	return res, nil
}

// Validate reads the first sheet and checks the header row. It returns the
// number of data rows.
func Validate(filename string, data []byte, required []string) (int, error) {
	rows, err := readRows(filename, data)
	if err != nil {
		return 0, err
	}
	for len(rows) > 0 && blank(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return 0, ErrEmptySheet
	}

	headers := make([]string, len(rows[0]))
	have := make(map[string]bool, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = normalizeHeader(h)
		have[headers[i]] = true
	}
	var missing []string
	for _, col := range required {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return 0, &MissingColumnsError{Missing: missing, Found: headers}
	}

	n := 0
	for _, row := range rows[1:] {
		if !blank(row) {
			n++
		}
	}
	return n, nil
}

func readRows(filename string, data []byte) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls":
		return readXLS(data)
	case ".xlsx":
		file, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: open xlsx: %v", ErrUnreadableFile, err)
		}
		defer func() { _ = file.Close() }()

		sheet := file.GetSheetName(0)
		if sheet == "" {
			return nil, ErrEmptySheet
		}
		rows, err := file.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("%w: read xlsx: %v", ErrUnreadableFile, err)
		}
		return rows, nil
	default:
		return nil, ErrUnsupportedFile
	}
}

// readXLS returns the rows of the first worksheet. The xls parser panics on
// some malformed files.
func readXLS(data []byte) (rows [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("%w: parse xls: %v", ErrUnreadableFile, r)
		}
	}()
	workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: open xls: %v", ErrUnreadableFile, err)
	}
	if workbook == nil {
		return nil, fmt.Errorf("%w: no workbook stream", ErrUnreadableFile)
	}
	sheet := workbook.GetSheet(0)
	if sheet == nil {
		return nil, ErrEmptySheet
	}
	return collectRows(int(sheet.MaxRow), func(i int) ([]string, bool) {
		row := xlsRow(sheet, i)
		if row == nil {
			return nil, false
		}
		cells := make([]string, 0, row.LastCol()+1)
		for c := 0; c <= row.LastCol(); c++ {
			cells = append(cells, row.Col(c))
		}
		return cells, true
	}), nil
}

// xlsRow returns nil for rows the sheet does not store; Row dereferences
// them unchecked.
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

// collectRows reads rows 0..maxRow, keeping missing rows as blanks so row
// positions survive, and drops trailing empty cells.
func collectRows(maxRow int, row func(i int) ([]string, bool)) [][]string {
	if maxRow >= maxSheetRows {
		maxRow = maxSheetRows - 1
	}
	rows := make([][]string, 0, maxRow+1)
	for i := 0; i <= maxRow; i++ {
		cells, ok := row(i)
		if !ok {
			rows = append(rows, nil)
			continue
		}
		for len(cells) > 0 && strings.TrimSpace(cells[len(cells)-1]) == "" {
			cells = cells[:len(cells)-1]
		}
		rows = append(rows, cells)
	}
	return rows
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
