package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"fitlog/internal/domain"
)

// ExportFilename is the suggested download name for CSV exports.
const ExportFilename = "fitness_export.csv"

var exportHeader = []string{"date", "steps", "calories", "sleep_hours", "notes"}

// ExportService serialises a user's entries.
type ExportService struct {
	entries *EntryService
}

// NewExportService creates an ExportService reading through entries.
func NewExportService(entries *EntryService) *ExportService {
	return &ExportService{entries: entries}
}

// ExportCSV writes all of userID's entries to w in List order.
func (s *ExportService) ExportCSV(ctx context.Context, userID int64, w io.Writer) error {
	entries, err := s.entries.List(ctx, userID)
	if err != nil {
		return err
	}
	return WriteCSV(w, entries)
}

// WriteCSV writes entries with the fixed export header.
func WriteCSV(w io.Writer, entries []domain.FitnessEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, e := range entries {
		row := []string{
			e.Date,
			strconv.Itoa(e.Steps),
			strconv.Itoa(e.Calories),
			strconv.FormatFloat(e.SleepHours, 'f', -1, 64),
			e.Notes,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ParseCSV reads an export produced by WriteCSV back into entry inputs.
func ParseCSV(r io.Reader) ([]domain.EntryInput, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(exportHeader)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty export", domain.ErrValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	for i, col := range exportHeader {
		if header[i] != col {
			return nil, fmt.Errorf("%w: unexpected column %q", domain.ErrValidation, header[i])
		}
	}

	var out []domain.EntryInput
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		out = append(out, domain.EntryInput{
			Date:       rec[0],
			Steps:      domain.ParseCount(rec[1]),
			Calories:   domain.ParseCount(rec[2]),
			SleepHours: domain.ParseHours(rec[3]),
			Notes:      rec[4],
		})
	}
}
