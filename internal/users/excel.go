package users

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Spreadsheet filenames offered to the browser.
const (
	TemplateFilename = "users_template.xlsx"
	ExportFilename   = "users.xlsx"
)

// templateHeader is the exact import schema: heading row plus one example
// row showing the expected shape.
var templateHeader = []string{"name", "email", "role", "password"}

// exportHeader mirrors the entity's canonical field names.
var exportHeader = []string{"id", "name", "email", "role", "created_at", "updated_at"}

const sheetName = "Sheet1"

// ImportRow is one spreadsheet row keyed by the heading row.
type ImportRow struct {
	Name     string
	Email    string
	Role     string
	Password string
}

// WriteTemplate emits the fixed-shape import skeleton.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(sheetName, "A1", &templateHeader); err != nil {
		return err
	}
	example := []string{"John Doe", "john@example.com", "admin", "secret-password"}
	if err := f.SetSheetRow(sheetName, "A2", &example); err != nil {
		return err
	}
	return f.Write(w)
}

// WriteExport emits every given user as one row under the canonical header.
func WriteExport(w io.Writer, users []User) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(sheetName, "A1", &exportHeader); err != nil {
		return err
	}
	for i, user := range users {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			user.ID,
			user.Name,
			user.Email,
			user.Role,
			user.CreatedAt.Format("2006-01-02 15:04:05"),
			user.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// ReadImport parses an uploaded spreadsheet. Row 1 is the heading row; keys
// are matched case-insensitively with surrounding whitespace ignored, so
// " Email " still maps to the email column. Cells past the header width are
// dropped.
func ReadImport(r io.Reader) ([]ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	columns := make(map[string]int, len(rows[0]))
	for i, heading := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(heading))
		if key != "" {
			columns[key] = i
		}
	}

	cell := func(row []string, key string) string {
		index, ok := columns[key]
		if !ok || index >= len(row) {
			return ""
		}
		return row[index]
	}

	imported := make([]ImportRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		imported = append(imported, ImportRow{
			Name:     cell(row, "name"),
			Email:    cell(row, "email"),
			Role:     cell(row, "role"),
			Password: cell(row, "password"),
		})
	}
	return imported, nil
}
