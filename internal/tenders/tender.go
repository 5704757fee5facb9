/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Tenders
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package tenders collects climate-related procurement notices from public
// tender sites and keeps them for review.
package tenders

import (
	"strings"
	"time"
)

// Display names stored in the source column.
const (
	SourceAUS  = "Australian Government Tenders"
	SourceGIZ  = "GIZ (German Development Agency)"
	SourceUNDP = "UNDP (United Nations Development Programme)"
)

// SourceName maps a source key ("aus", "giz", "undp") to the display name
// stored with each tender. Anything else is returned unchanged.
func SourceName(key string) string {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case KeyAUS:
		return SourceAUS
	case KeyGIZ:
		return SourceGIZ
	case KeyUNDP:
		return SourceUNDP
	}
	return key
}

// Tender is one procurement notice.
type Tender struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	ClosingDate      string    `json:"closing_date"`
	Organization     string    `json:"organization"`
	Link             string    `json:"link"`
	Source           string    `json:"source"`
	ScrapedAt        time.Time `json:"scraped_at"`
	IsClimateRelated bool      `json:"is_climate_related"`
	Processed        bool      `json:"processed"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
}

var climateKeywords = []string{
	"climate", "sustainability", "environment", "environmental", "green",
	"renewable", "energy", "carbon", "emissions", "biodiversity",
	"conservation", "ecosystem", "clean", "sustainable", "circular",
	"waste", "recycling", "pollution", "forest", "ocean",
	"marine", "agriculture", "food security", "water", "air quality",
	"soil", "wildlife", "habitat", "adaptation", "mitigation",
}

// IsClimateRelated reports whether the title or description mentions a
// climate keyword. Matching is a case-insensitive substring test.
func IsClimateRelated(title, description string) bool {
	text := strings.ToLower(title + " " + description)
	for _, kw := range climateKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
