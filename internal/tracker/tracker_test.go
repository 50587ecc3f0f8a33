package tracker

import (
	"strings"
	"testing"
)

const sampleCSV = `Company,Role,Status,Career Page URL,Tags,Notes,Date Applied,Response,Interview Stage,Response Type
Acme,ML Engineer,Applied,https://jobs.ashbyhq.com/acme/1,ai;remote,Good fit,2026-08-01,,,
,,,,,,,,,
Beta Corp,Backend Engineer,Rejected,https://jobs.lever.co/beta/2,go,,2026-07-15,Yes,,Rejection email
Acme,ML Engineer,Applied,https://jobs.ashbyhq.com/acme/1,ai;remote,Duplicate row,2026-08-01,,,
`

func TestReadRows_SkipsBlankRows(t *testing.T) {
	rows, err := readRows(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("readRows failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3 (blank row skipped)", len(rows))
	}
	if rows[0].Get("Company") != "Acme" {
		t.Errorf("first row company = %q", rows[0].Get("Company"))
	}
}

func TestReadRows_RaggedRowsTolerated(t *testing.T) {
	csv := "Company,Role,Status\nAcme,ML Engineer\n"
	rows, err := readRows(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("readRows failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Get("Status") != "" {
		t.Errorf("missing field should be empty, got %q", rows[0].Get("Status"))
	}
}

func TestBuildRecords_DedupesByAppID(t *testing.T) {
	rows, err := readRows(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("readRows failed: %v", err)
	}
	records, errs := BuildRecords(rows)
	if len(errs) != 0 {
		t.Errorf("unexpected row errors: %v", errs)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2 (duplicate collapsed)", len(records))
	}
	if records[0].Method != "ashby" {
		t.Errorf("method = %q, want ashby", records[0].Method)
	}
	if records[0].Text == "" || records[0].ContextText == "" {
		t.Error("record text fields should be populated")
	}
}

func TestBuildRecords_CollectsRowErrors(t *testing.T) {
	rows := []Row{
		{"Company": "", "Role": "", "Notes": "orphan note"},
		{"Company": "Acme", "Role": "SRE"},
	}
	records, errs := BuildRecords(rows)
	if len(records) != 1 {
		t.Errorf("got %d records, want 1", len(records))
	}
	if len(errs) != 1 {
		t.Errorf("got %d errors, want 1", len(errs))
	}
}

func TestInferOutcome(t *testing.T) {
	tests := []struct {
		name string
		row  Row
		want string
	}{
		{"offer status", Row{"Status": "Offer"}, "offer"},
		{"offer marker", Row{"Status": "Applied", "Response Type": "Verbal offer"}, "offer"},
		{"rejected status", Row{"Status": "Rejected"}, "rejected"},
		{"reject marker", Row{"Status": "Applied", "Response": "rejection email"}, "rejected"},
		{"blocked captcha", Row{"Status": "Applied", "Response": "captcha wall"}, "blocked"},
		{"interview stage", Row{"Status": "Applied", "Interview Stage": "Phone screen"}, "interview"},
		{"recruiter response", Row{"Status": "Applied", "Response": "Recruiter reached out"}, "response"},
		{"no signal", Row{"Status": "Applied"}, ""},
		{"draft rows skipped", Row{"Status": "Draft", "Interview Stage": "onsite"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferOutcome(tt.row); got != tt.want {
				t.Errorf("InferOutcome = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOutcomeKey_ChangesWithRowState(t *testing.T) {
	row1 := Row{"Status": "Applied", "Response": "recruiter reached out"}
	row2 := Row{"Status": "Applied", "Response": "recruiter reached out", "Interview Stage": "onsite"}

	k1 := OutcomeKey(row1, "acme__sre__abc", "response")
	k1again := OutcomeKey(row1, "acme__sre__abc", "response")
	k2 := OutcomeKey(row2, "acme__sre__abc", "interview")

	if k1 != k1again {
		t.Error("same row state must produce the same key")
	}
	if k1 == k2 {
		t.Error("advanced row state must produce a new key")
	}
}
