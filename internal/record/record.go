// Package record defines the tracked application record and its
// normalization rules: canonical statuses, tag parsing, stable IDs, and
// application-method inference from career-page URLs.
package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Canonical statuses. Anything else passes through unchanged.
const (
	StatusApplied  = "Applied"
	StatusDraft    = "Draft"
	StatusClosed   = "Closed"
	StatusBlocked  = "Blocked"
	StatusRejected = "Rejected"
	StatusOffer    = "Offer"
)

// Record is one tracked job application.
type Record struct {
	AppID       string   `json:"app_id"`
	Company     string   `json:"company"`
	Role        string   `json:"role"`
	Status      string   `json:"status"`
	DateApplied string   `json:"date_applied"`
	URL         string   `json:"url"`
	Method      string   `json:"application_method"`
	Tags        []string `json:"tags"`
	Notes       string   `json:"notes"`
	// ContextText is a compact one-line summary used for lexical overlap
	// scoring and retrieval payloads.
	ContextText string `json:"context_bundle_text"`
	// Text is the full document text indexed for retrieval.
	Text      string `json:"text"`
	UpdatedAt string `json:"updated_at"`
}

var nonAlnumRE = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases s and replaces non-alphanumeric runs with hyphens.
// Empty input slugs to "unknown".
func Slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(nonAlnumRE.ReplaceAllString(s, "-"), "-")
	if s == "" {
		return "unknown"
	}
	return s
}

// StableID derives a deterministic application ID from company, role and
// URL: slug(company)__slug(role)__sha256(base)[:10].
func StableID(company, role, url string) string {
	base := fmt.Sprintf("%s__%s__%s", Slug(company), Slug(role), strings.TrimSpace(url))
	sum := sha256.Sum256([]byte(base))
	return fmt.Sprintf("%s__%s__%s", Slug(company), Slug(role), hex.EncodeToString(sum[:])[:10])
}

// ParseTags splits a semicolon-separated tag field.
func ParseTags(tagStr string) []string {
	if tagStr == "" {
		return nil
	}
	var tags []string
	for _, p := range strings.Split(tagStr, ";") {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

// NormalizeStatus maps free-form tracker statuses onto canonical values.
// Unknown non-empty statuses pass through; empty becomes Draft.
func NormalizeStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "applied":
		return StatusApplied
	case "draft", "in progress":
		return StatusDraft
	case "closed":
		return StatusClosed
	case "blocked":
		return StatusBlocked
	case "rejected":
		return StatusRejected
	case "offer":
		return StatusOffer
	case "":
		return StatusDraft
	default:
		return strings.TrimSpace(status)
	}
}

// atsPatterns are ordered by specificity, most specific first.
var atsPatterns = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"mercor", regexp.MustCompile(`work\.mercor\.com`)},
	{"ashby", regexp.MustCompile(`ashbyhq\.com`)},
	{"greenhouse", regexp.MustCompile(`greenhouse\.io|job-boards\.greenhouse\.io`)},
	{"lever", regexp.MustCompile(`jobs\.lever\.co`)},
	{"wellfound", regexp.MustCompile(`wellfound\.com|angel\.co`)},
	{"workday", regexp.MustCompile(`myworkdayjobs\.com|workday\.com`)},
	{"linkedin", regexp.MustCompile(`linkedin\.com/jobs`)},
}

// InferMethod infers the ATS/application channel from a job URL.
// Returns a stable lowercase key, "direct" when no pattern matches.
func InferMethod(url string) string {
	url = strings.ToLower(url)
	for _, ats := range atsPatterns {
		if ats.pattern.MatchString(url) {
			return ats.name
		}
	}
	return "direct"
}

// BuildContextText assembles the compact context line for a record.
func BuildContextText(r *Record) string {
	parts := []string{
		"company=" + r.Company,
		"role=" + r.Role,
		"status=" + r.Status,
		"method=" + r.Method,
		"tags=" + strings.Join(r.Tags, " "),
	}
	return strings.TrimSpace(strings.Join(parts, " | "))
}

// BuildText assembles the full indexable document text for a record.
func BuildText(r *Record) string {
	parts := []string{
		"Company: " + r.Company,
		"Role: " + r.Role,
		"Status: " + r.Status,
		"Application Method: " + r.Method,
		"Career Page URL: " + r.URL,
		"Tags: " + strings.Join(r.Tags, ";"),
		"Notes: " + r.Notes,
	}
	return strings.Join(parts, "\n")
}

// Now returns the current UTC timestamp in RFC 3339 format, the format
// used by all persisted records and memory entries.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
