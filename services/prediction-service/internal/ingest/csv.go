// Package ingest parses appointment history uploads into raw records.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/showuphq/showup/services/prediction-service/internal/model"
)

var (
	ErrMissingHeader = errors.New("ingest: missing header row")
	ErrNoDataColumns = errors.New("ingest: required columns not found")
)

// Required columns. appointment_type, phone and email are optional.
const (
	colPersonCode  = "patient_code"
	colScheduledAt = "appointment_datetime"
	colShowedUp    = "showed_up"
	colType        = "appointment_type"
	colPhone       = "phone"
	colEmail       = "email"
)

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
}

// Result carries the parsed rows plus per-row parse failures. A bad row
// never aborts the batch.
type Result struct {
	Records []model.RawRecord
	Errors  []string
}

// ParseCSV reads a header-mapped CSV stream. Column order does not matter
// and unknown columns are ignored.
func ParseCSV(r io.Reader) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return Result{}, ErrMissingHeader
	}
	if err != nil {
		return Result{}, fmt.Errorf("ingest: read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{colPersonCode, colScheduledAt, colShowedUp} {
		if _, ok := idx[required]; !ok {
			return Result{}, fmt.Errorf("%w: %s", ErrNoDataColumns, required)
		}
	}

	var out Result
	line := 1
	for {
		line++
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		rec, err := parseRow(idx, row)
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		out.Records = append(out.Records, rec)
	}
	return out, nil
}

func parseRow(idx map[string]int, row []string) (model.RawRecord, error) {
	var rec model.RawRecord

	rec.PersonCode = strings.TrimSpace(field(idx, row, colPersonCode))
	if rec.PersonCode == "" {
		return rec, errors.New("empty patient_code")
	}

	rawTime := strings.TrimSpace(field(idx, row, colScheduledAt))
	ts, err := parseTime(rawTime)
	if err != nil {
		return rec, err
	}
	rec.ScheduledAt = ts

	showed, err := parseBool(field(idx, row, colShowedUp))
	if err != nil {
		return rec, err
	}
	rec.ShowedUp = showed

	rec.Type = strings.TrimSpace(field(idx, row, colType))
	rec.Phone = strings.TrimSpace(field(idx, row, colPhone))
	rec.Email = strings.TrimSpace(field(idx, row, colEmail))
	return rec, nil
}

func field(idx map[string]int, row []string, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("empty appointment_datetime")
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable appointment_datetime %q", raw)
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "y":
		return true, nil
	case "false", "0", "no", "n":
		return false, nil
	case "":
		return false, errors.New("empty showed_up")
	default:
		return false, fmt.Errorf("unparseable showed_up %q", raw)
	}
}
