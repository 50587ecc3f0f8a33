// Package tracker reads the application tracker CSV. This is the
// collaborator boundary around the spreadsheet the rest of the system
// treats as the source of truth: rows in, normalized records out.
package tracker

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/applyrag/applyrag/internal/record"
)

// Header names used by the tracker spreadsheet.
const (
	colCompany      = "Company"
	colRole         = "Role"
	colStatus       = "Status"
	colURL          = "Career Page URL"
	colTags         = "Tags"
	colNotes        = "Notes"
	colDateApplied  = "Date Applied"
	colResponse     = "Response"
	colStage        = "Interview Stage"
	colResponseType = "Response Type"
)

// Row is one raw tracker row keyed by header name.
type Row map[string]string

// Get returns a trimmed field value.
func (r Row) Get(key string) string {
	return strings.TrimSpace(r[key])
}

// LoadRows reads all non-blank rows from the tracker CSV.
func LoadRows(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening tracker %s: %w", path, err)
	}
	defer f.Close()
	return readRows(f)
}

func readRows(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // ragged rows tolerated

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading tracker header: %w", err)
	}

	var rows []Row
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tracker row: %w", err)
		}

		row := make(Row, len(header))
		blank := true
		for i, name := range header {
			var v string
			if i < len(fields) {
				v = fields[i]
			}
			if strings.TrimSpace(v) != "" {
				blank = false
			}
			row[name] = v
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// BuildRecords converts tracker rows into normalized records, deduplicated
// by AppID. Per-row failures are collected, never fatal.
func BuildRecords(rows []Row) (records []*record.Record, errs []string) {
	seen := make(map[string]bool)
	now := record.Now()

	for _, row := range rows {
		rec, err := buildRecord(row, now)
		if err != nil {
			errs = append(errs, fmt.Sprintf("failed to ingest %s / %s: %v",
				row.Get(colCompany), row.Get(colRole), err))
			continue
		}
		if seen[rec.AppID] {
			continue
		}
		seen[rec.AppID] = true
		records = append(records, rec)
	}
	return records, errs
}

func buildRecord(row Row, now string) (*record.Record, error) {
	company := row.Get(colCompany)
	role := row.Get(colRole)
	if company == "" && role == "" {
		return nil, fmt.Errorf("row has neither company nor role")
	}

	url := row.Get(colURL)
	rec := &record.Record{
		AppID:       record.StableID(company, role, url),
		Company:     company,
		Role:        role,
		Status:      record.NormalizeStatus(row.Get(colStatus)),
		DateApplied: row.Get(colDateApplied),
		URL:         url,
		Method:      record.InferMethod(url),
		Tags:        record.ParseTags(row.Get(colTags)),
		Notes:       row.Get(colNotes),
		UpdatedAt:   now,
	}
	rec.ContextText = record.BuildContextText(rec)
	rec.Text = record.BuildText(rec)
	return rec, nil
}

// InferOutcome derives an explicit outcome from a tracker row's status and
// response fields. Returns "" when the row carries no usable signal
// (e.g. drafts, applied rows with no response yet).
func InferOutcome(row Row) string {
	status := record.NormalizeStatus(row.Get(colStatus))
	combined := strings.ToLower(strings.Join([]string{
		row.Get(colResponse), row.Get(colStage), row.Get(colResponseType),
	}, " | "))

	switch {
	case status == record.StatusOffer || strings.Contains(combined, "offer"):
		return "offer"
	case status == record.StatusRejected || strings.Contains(combined, "reject"):
		return "rejected"
	case status == record.StatusBlocked ||
		strings.Contains(combined, "blocked") ||
		strings.Contains(combined, "captcha"):
		return "blocked"
	}

	if status != record.StatusApplied {
		return ""
	}

	for _, m := range []string{"interview", "phone screen", "screening", "onsite", "final round"} {
		if strings.Contains(combined, m) {
			return "interview"
		}
	}
	for _, m := range []string{"recruiter", "reached out", "reply", "responded", "response"} {
		if strings.Contains(combined, m) {
			return "response"
		}
	}
	return ""
}

// OutcomeKey builds the idempotency key used to dedupe tracker outcome
// syncs: the same row state never updates the model twice.
func OutcomeKey(row Row, appID, outcome string) string {
	return strings.ToLower(strings.Join([]string{
		appID, outcome,
		record.NormalizeStatus(row.Get(colStatus)),
		row.Get(colResponse), row.Get(colStage), row.Get(colResponseType),
	}, "|"))
}
