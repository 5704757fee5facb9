/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - RFP Metadata Extraction
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package analysis

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/llm"
)

// Metadata holds RFP fields found in the document text. Empty strings and a
// nil ProjectCost mean the field was not stated.
type Metadata struct {
	OrganizationGroup     string   `json:"organization_group,omitempty"`
	Country               string   `json:"country,omitempty"`
	Region                string   `json:"region,omitempty"`
	Industry              string   `json:"industry,omitempty"`
	ProjectFocus          string   `json:"project_focus,omitempty"`
	OPFGapSize            string   `json:"opf_gap_size,omitempty"`
	OPFGaps               string   `json:"opf_gaps,omitempty"`
	Deliverables          string   `json:"deliverables,omitempty"`
	PostingContact        string   `json:"posting_contact,omitempty"`
	PotentialExperts      string   `json:"potential_experts,omitempty"`
	ProjectCost           *float64 `json:"project_cost,omitempty"`
	Currency              string   `json:"currency,omitempty"`
	SpecificStaffingNeeds string   `json:"specific_staffing_needs,omitempty"`
	DueDate               string   `json:"due_date,omitempty"`
}

// Fields returns the stated text fields keyed by RFP column name.
func (m *Metadata) Fields() map[string]string {
	all := map[string]string{
		"organization_group":      m.OrganizationGroup,
		"country":                 m.Country,
		"region":                  m.Region,
		"industry":                m.Industry,
		"project_focus":           m.ProjectFocus,
		"opf_gap_size":            m.OPFGapSize,
		"opf_gaps":                m.OPFGaps,
		"deliverables":            m.Deliverables,
		"posting_contact":         m.PostingContact,
		"potential_experts":       m.PotentialExperts,
		"currency":                m.Currency,
		"specific_staffing_needs": m.SpecificStaffingNeeds,
		"due_date":                m.DueDate,
	}
	out := make(map[string]string, len(all))
	for k, v := range all {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// ParseMetadata decodes a metadata response, normalising the due date and
// cost. It fails only when no JSON object can be recovered.
func ParseMetadata(text string) (*Metadata, bool) {
	var raw map[string]any
	if !llm.DecodeObject(text, &raw) {
		return nil, false
	}

	md := &Metadata{
		OrganizationGroup:     stated(raw["organization_group"]),
		Country:               stated(raw["country"]),
		Region:                stated(raw["region"]),
		Industry:              stated(raw["industry"]),
		ProjectFocus:          stated(raw["project_focus"]),
		OPFGapSize:            stated(raw["opf_gap_size"]),
		OPFGaps:               stated(raw["opf_gaps"]),
		Deliverables:          stated(raw["deliverables"]),
		PostingContact:        stated(raw["posting_contact"]),
		PotentialExperts:      stated(raw["potential_experts"]),
		Currency:              stated(raw["currency"]),
		SpecificStaffingNeeds: stated(raw["specific_staffing_needs"]),
		DueDate:               NormalizeDate(stated(raw["due_date"])),
		ProjectCost:           parseCost(raw["project_cost"]),
	}
	return md, true
}

// stated flattens a value, treating placeholders the model uses for
// "unknown" as empty.
func stated(v any) string {
	s := flatten(v)
	switch strings.ToLower(s) {
	case "null", "none", "n/a", "not stated", "unknown", "not specified":
		return ""
	}
	return s
}

var (
	yearOnly      = regexp.MustCompile(`^\d{4}$`)
	yearMonth     = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)
	isoDatePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
)

var dateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2006",
	"2006/01/02",
}

// NormalizeDate returns s as YYYY-MM-DD, or "" when it cannot be read.
// A bare year becomes YYYY-01-01 and a year-month YYYY-MM-01.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return ""
	case yearOnly.MatchString(s):
		return s + "-01-01"
	case isoDatePrefix.MatchString(s):
		if _, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return s[:10]
		}
		return ""
	}
	if m := yearMonth.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return ""
		}
		return fmt.Sprintf("%s-%02d-01", m[1], month)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

var costNoise = strings.NewReplacer(",", "", "$", "", "€", "", "£", "", " ", "")

func parseCost(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		s := costNoise.Replace(strings.TrimSpace(t))
		for _, code := range []string{"USD", "EUR", "GBP", "AUD", "CAD"} {
			s = strings.TrimSuffix(strings.TrimPrefix(s, code), code)
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return &f
		}
	}
	return nil
}
