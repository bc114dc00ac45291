package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/Ubastic/notemind/internal/apperr"
	"github.com/Ubastic/notemind/internal/model"
	"github.com/Ubastic/notemind/internal/repo"
)

// TrackerDocument is the spreadsheet-like structure each user keeps:
// projects holding tables of columns and rows. The server stores and
// replaces it wholesale; only ownership is enforced.
type TrackerDocument struct {
	Projects []TrackerProject `json:"projects"`
}

// TrackerProject groups tables under a name.
type TrackerProject struct {
	Name   string         `json:"name"`
	Tables []TrackerTable `json:"tables"`
}

// TrackerTable is one grid of cells.
type TrackerTable struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// TrackerService stores and converts the per-user tracker document.
type TrackerService struct {
	tracker repo.TrackerRepository
}

// NewTrackerService creates a TrackerService.
func NewTrackerService(tracker repo.TrackerRepository) *TrackerService {
	return &TrackerService{tracker: tracker}
}

// Get returns the user's document; a user who never saved one gets an empty
// document rather than an error.
func (s *TrackerService) Get(ctx context.Context, user *model.User) (TrackerDocument, error) {
	doc, err := s.tracker.Get(ctx, user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TrackerDocument{Projects: []TrackerProject{}}, nil
		}
		return TrackerDocument{}, err
	}
	return decodeTrackerPayload(doc.Payload)
}

func decodeTrackerPayload(payload string) (TrackerDocument, error) {
	document := TrackerDocument{Projects: []TrackerProject{}}
	if payload == "" {
		return document, nil
	}
	if err := json.Unmarshal([]byte(payload), &document); err != nil {
		return TrackerDocument{}, fmt.Errorf("%w: malformed tracker document", apperr.ErrValidation)
	}
	if document.Projects == nil {
		document.Projects = []TrackerProject{}
	}
	return document, nil
}

// Replace overwrites the user's document wholesale.
func (s *TrackerService) Replace(ctx context.Context, user *model.User, document TrackerDocument) (TrackerDocument, error) {
	if document.Projects == nil {
		document.Projects = []TrackerProject{}
	}
	payload, err := json.Marshal(document)
	if err != nil {
		return TrackerDocument{}, err
	}
	if err := s.tracker.Replace(ctx, user.ID, string(payload)); err != nil {
		return TrackerDocument{}, err
	}
	return document, nil
}

// ExportJSON renders the document as indented JSON.
func (s *TrackerService) ExportJSON(ctx context.Context, user *model.User) ([]byte, error) {
	document, err := s.Get(ctx, user)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(document, "", "  ")
}

// ExportCSV flattens every table into one CSV stream: each data row is
// prefixed with its project and table name, preceded by a per-table header.
func (s *TrackerService) ExportCSV(ctx context.Context, user *model.User) ([]byte, error) {
	document, err := s.Get(ctx, user)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, project := range document.Projects {
		for _, table := range project.Tables {
			header := append([]string{"project", "table"}, table.Columns...)
			if err := w.Write(header); err != nil {
				return nil, err
			}
			for _, row := range table.Rows {
				record := append([]string{project.Name, table.Name}, row...)
				if err := w.Write(record); err != nil {
					return nil, err
				}
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sheetName builds a unique XLSX sheet name within the 31-char limit.
func sheetName(project, table string, used map[string]int) string {
	name := strings.TrimSpace(project + " - " + table)
	if name == "-" || name == "" {
		name = "Sheet"
	}
	runes := []rune(name)
	if len(runes) > 28 {
		name = string(runes[:28])
	}
	used[name]++
	if n := used[name]; n > 1 {
		name = fmt.Sprintf("%s %d", name, n)
	}
	return name
}

// ExportXLSX renders one worksheet per table: the column header row first,
// data rows after.
func (s *TrackerService) ExportXLSX(ctx context.Context, user *model.User) ([]byte, error) {
	document, err := s.Get(ctx, user)
	if err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close()

	used := make(map[string]int)
	first := true
	for _, project := range document.Projects {
		for _, table := range project.Tables {
			name := sheetName(project.Name, table.Name, used)
			if first {
				if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
					return nil, err
				}
				first = false
			} else {
				if _, err := f.NewSheet(name); err != nil {
					return nil, err
				}
			}
			rows := append([][]string{table.Columns}, table.Rows...)
			for i, row := range rows {
				cell, err := excelize.CoordinatesToCellName(1, i+1)
				if err != nil {
					return nil, err
				}
				if err := f.SetSheetRow(name, cell, &row); err != nil {
					return nil, err
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ImportJSON replaces the document with the uploaded JSON payload.
func (s *TrackerService) ImportJSON(ctx context.Context, user *model.User, r io.Reader) (TrackerDocument, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return TrackerDocument{}, err
	}
	document, err := decodeTrackerPayload(string(raw))
	if err != nil {
		return TrackerDocument{}, err
	}
	return s.Replace(ctx, user, document)
}

// ImportXLSX replaces the document with the workbook's contents: every sheet
// becomes a single-table project, the first row supplying the columns.
func (s *TrackerService) ImportXLSX(ctx context.Context, user *model.User, r io.Reader) (TrackerDocument, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return TrackerDocument{}, fmt.Errorf("%w: malformed workbook", apperr.ErrValidation)
	}
	defer f.Close()

	document := TrackerDocument{Projects: []TrackerProject{}}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return TrackerDocument{}, err
		}
		table := TrackerTable{Name: sheet, Columns: []string{}, Rows: [][]string{}}
		if len(rows) > 0 {
			table.Columns = rows[0]
			table.Rows = rows[1:]
		}
		document.Projects = append(document.Projects, TrackerProject{
			Name:   sheet,
			Tables: []TrackerTable{table},
		})
	}
	return s.Replace(ctx, user, document)
}
