/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - RFP Store
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package rfp stores proposal opportunities, their uploaded documents and
// the analysis written back to them.
package rfp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/analysis"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/apperr"
)

const previewChars = 200

// RFP is one proposal opportunity.
type RFP struct {
	ID                    int64    `json:"id"`
	ProjectName           string   `json:"project_name"`
	OrganizationGroup     string   `json:"organization_group"`
	Country               string   `json:"country"`
	Region                string   `json:"region"`
	Industry              string   `json:"industry"`
	ProjectFocus          string   `json:"project_focus"`
	OPFGapSize            string   `json:"opf_gap_size"`
	OPFGaps               string   `json:"opf_gaps"`
	Deliverables          string   `json:"deliverables"`
	PostingContact        string   `json:"posting_contact"`
	PotentialExperts      string   `json:"potential_experts"`
	ProjectCost           *float64 `json:"project_cost"`
	Currency              string   `json:"currency"`
	SpecificStaffingNeeds string   `json:"specific_staffing_needs"`
	DueDate               string   `json:"due_date"`
	Link                  string   `json:"link"`

	AIFitAssessment        string     `json:"ai_fit_assessment"`
	AIKeyStrengths         string     `json:"ai_key_strengths"`
	AIGapsChallenges       string     `json:"ai_gaps_challenges"`
	AIRecommendations      string     `json:"ai_recommendations"`
	AIResourceRequirements string     `json:"ai_resource_requirements"`
	AIRiskAssessment       string     `json:"ai_risk_assessment"`
	AICompetitivePosition  string     `json:"ai_competitive_position"`
	AIAnalysisDate         *time.Time `json:"ai_analysis_date"`

	DocumentCount int       `json:"document_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasAnalysis reports whether an analysis has been saved for the RFP.
func (r *RFP) HasAnalysis() bool {
	return r.AIAnalysisDate != nil
}

// Analysis rebuilds the persisted analysis.
func (r *RFP) Analysis() *analysis.Result {
	return &analysis.Result{
		FitAssessment:        r.AIFitAssessment,
		KeyStrengths:         r.AIKeyStrengths,
		GapsChallenges:       r.AIGapsChallenges,
		Recommendations:      r.AIRecommendations,
		ResourceRequirements: r.AIResourceRequirements,
		RiskAssessment:       r.AIRiskAssessment,
		CompetitivePosition:  r.AICompetitivePosition,
	}
}

// Document is an uploaded file's extracted text.
type Document struct {
	ID           int64     `json:"id"`
	RFPID        int64     `json:"rfp_id"`
	DocumentName string    `json:"document_name"`
	Content      string    `json:"content,omitempty"`
	TextPreview  string    `json:"text_preview"`
	CreatedAt    time.Time `json:"created_at"`
}

// textColumns are the descriptive columns a caller may edit.
var textColumns = map[string]bool{
	"project_name":            true,
	"organization_group":      true,
	"country":                 true,
	"region":                  true,
	"industry":                true,
	"project_focus":           true,
	"opf_gap_size":            true,
	"opf_gaps":                true,
	"deliverables":            true,
	"posting_contact":         true,
	"potential_experts":       true,
	"currency":                true,
	"specific_staffing_needs": true,
	"due_date":                true,
	"link":                    true,
}

const selectRFP = `
    SELECT r.id, r.project_name, r.organization_group, r.country, r.region, r.industry,
           r.project_focus, r.opf_gap_size, r.opf_gaps, r.deliverables, r.posting_contact,
           r.potential_experts, r.project_cost, r.currency, r.specific_staffing_needs,
           r.due_date, r.link,
           r.ai_fit_assessment, r.ai_key_strengths, r.ai_gaps_challenges, r.ai_recommendations,
           r.ai_resource_requirements, r.ai_risk_assessment, r.ai_competitive_position,
           r.ai_analysis_date,
           (SELECT COUNT(*) FROM rfp_documents d WHERE d.rfp_id = r.id),
           r.created_at, r.updated_at
    FROM rfps r`

// Store persists RFPs and their documents.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore wraps an application database opened by appstore.Open.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new RFP. Only the project name is required.
func (s *Store) Create(ctx context.Context, projectName, link string) (*RFP, error) {
	projectName = strings.TrimSpace(projectName)
	if projectName == "" {
		return nil, apperr.New(apperr.KindInputValidation, "rfp.create", "project name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO rfps (project_name, link, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		projectName, strings.TrimSpace(link), now, now,
	)
	if err != nil {
		return nil, storeErr("rfp.create", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, storeErr("rfp.create", err)
	}
	return s.getUnlocked(ctx, id)
}

// Get returns one RFP.
func (s *Store) Get(ctx context.Context, id int64) (*RFP, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getUnlocked(ctx, id)
}

// getUnlocked retrieves an RFP without acquiring a lock (caller must hold lock)
func (s *Store) getUnlocked(ctx context.Context, id int64) (*RFP, error) {
	row := s.db.QueryRowContext(ctx, selectRFP+` WHERE r.id = ?`, id)
	r, err := scanRFP(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "rfp.get", fmt.Sprintf("RFP %d not found", id))
	}
	if err != nil {
		return nil, storeErr("rfp.get", err)
	}
	return r, nil
}

// List returns every RFP, newest first.
func (s *Store) List(ctx context.Context) ([]*RFP, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectRFP+` ORDER BY r.created_at DESC, r.id DESC`)
	if err != nil {
		return nil, storeErr("rfp.list", err)
	}
	defer rows.Close()

	rfps := []*RFP{}
	for rows.Next() {
		r, err := scanRFP(rows)
		if err != nil {
			return nil, storeErr("rfp.list", err)
		}
		rfps = append(rfps, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("rfp.list", err)
	}
	return rfps, nil
}

// Update applies a partial edit. Keys that are not editable columns are
// ignored; an empty project_cost clears the cost.
func (s *Store) Update(ctx context.Context, id int64, fields map[string]any) (*RFP, error) {
	var sets []string
	var args []any
	for column, value := range fields {
		switch {
		case column == "project_cost":
			cost, err := parseCost(value)
			if err != nil {
				return nil, apperr.Wrap(apperr.KindInputValidation, "rfp.update", err)
			}
			sets = append(sets, "project_cost = ?")
			args = append(args, cost)
		case textColumns[column]:
			text := strings.TrimSpace(toString(value))
			if column == "project_name" && text == "" {
				return nil, apperr.New(apperr.KindInputValidation, "rfp.update", "project name cannot be empty")
			}
			sets = append(sets, column+" = ?")
			args = append(args, text)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sets) == 0 {
		return s.getUnlocked(ctx, id)
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)
	res, err := s.db.ExecContext(ctx, `UPDATE rfps SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, storeErr("rfp.update", err)
	}
	if err := requireRow(res, "rfp.update", fmt.Sprintf("RFP %d not found", id)); err != nil {
		return nil, err
	}
	return s.getUnlocked(ctx, id)
}

// Delete removes an RFP and, through the foreign key, its documents.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM rfps WHERE id = ?`, id)
	if err != nil {
		return storeErr("rfp.delete", err)
	}
	return requireRow(res, "rfp.delete", fmt.Sprintf("RFP %d not found", id))
}

// SaveAnalysis overwrites the stored analysis. Extracted metadata only fills
// fields the user has left empty. It returns the columns that were filled.
func (s *Store) SaveAnalysis(ctx context.Context, id int64, result *analysis.Result) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("rfp.save_analysis", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
        UPDATE rfps
        SET ai_fit_assessment = ?, ai_key_strengths = ?, ai_gaps_challenges = ?,
            ai_recommendations = ?, ai_resource_requirements = ?, ai_risk_assessment = ?,
            ai_competitive_position = ?, ai_analysis_date = ?, updated_at = ?
        WHERE id = ?`,
		result.FitAssessment, result.KeyStrengths, result.GapsChallenges,
		result.Recommendations, result.ResourceRequirements, result.RiskAssessment,
		result.CompetitivePosition, now, now, id,
	)
	if err != nil {
		return nil, storeErr("rfp.save_analysis", err)
	}
	if err := requireRow(res, "rfp.save_analysis", fmt.Sprintf("RFP %d not found", id)); err != nil {
		return nil, err
	}

	var filled []string
	if md := result.ExtractedMetadata; md != nil {
		for column, value := range md.Fields() {
			if !textColumns[column] {
				continue
			}
			res, err := tx.ExecContext(ctx,
				`UPDATE rfps SET `+column+` = ? WHERE id = ? AND `+column+` = ''`, value, id)
			if err != nil {
				return nil, storeErr("rfp.save_analysis", err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				filled = append(filled, column)
			}
		}
		if md.ProjectCost != nil {
			res, err := tx.ExecContext(ctx,
				`UPDATE rfps SET project_cost = ? WHERE id = ? AND project_cost IS NULL`, *md.ProjectCost, id)
			if err != nil {
				return nil, storeErr("rfp.save_analysis", err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				filled = append(filled, "project_cost")
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("rfp.save_analysis", err)
	}
	sort.Strings(filled)
	return filled, nil
}

// AddDocument attaches extracted text to an RFP.
func (s *Store) AddDocument(ctx context.Context, rfpID int64, name, content string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getUnlocked(ctx, rfpID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO rfp_documents (rfp_id, document_name, content, created_at) VALUES (?, ?, ?, ?)`,
		rfpID, name, content, now,
	)
	if err != nil {
		return nil, storeErr("rfp.add_document", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, storeErr("rfp.add_document", err)
	}
	return &Document{
		ID:           id,
		RFPID:        rfpID,
		DocumentName: name,
		TextPreview:  preview(content),
		CreatedAt:    now,
	}, nil
}

// ListDocuments returns an RFP's documents, oldest first. Content is only
// included when withContent is set.
func (s *Store) ListDocuments(ctx context.Context, rfpID int64, withContent bool) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, rfp_id, document_name, content, created_at
         FROM rfp_documents WHERE rfp_id = ? ORDER BY created_at, id`, rfpID)
	if err != nil {
		return nil, storeErr("rfp.list_documents", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var d Document
		var content string
		if err := rows.Scan(&d.ID, &d.RFPID, &d.DocumentName, &content, &d.CreatedAt); err != nil {
			return nil, storeErr("rfp.list_documents", err)
		}
		d.TextPreview = preview(content)
		if withContent {
			d.Content = content
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("rfp.list_documents", err)
	}
	return docs, nil
}

// DeleteDocument removes one document.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM rfp_documents WHERE id = ?`, id)
	if err != nil {
		return storeErr("rfp.delete_document", err)
	}
	return requireRow(res, "rfp.delete_document", fmt.Sprintf("document %d not found", id))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRFP(row scanner) (*RFP, error) {
	var r RFP
	var cost sql.NullFloat64
	var analyzed sql.NullTime
	err := row.Scan(&r.ID, &r.ProjectName, &r.OrganizationGroup, &r.Country, &r.Region, &r.Industry,
		&r.ProjectFocus, &r.OPFGapSize, &r.OPFGaps, &r.Deliverables, &r.PostingContact,
		&r.PotentialExperts, &cost, &r.Currency, &r.SpecificStaffingNeeds,
		&r.DueDate, &r.Link,
		&r.AIFitAssessment, &r.AIKeyStrengths, &r.AIGapsChallenges, &r.AIRecommendations,
		&r.AIResourceRequirements, &r.AIRiskAssessment, &r.AICompetitivePosition,
		&analyzed, &r.DocumentCount, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if cost.Valid {
		r.ProjectCost = &cost.Float64
	}
	if analyzed.Valid {
		r.AIAnalysisDate = &analyzed.Time
	}
	return &r, nil
}

func requireRow(res sql.Result, op, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(op, err)
	}
	if n == 0 {
		return apperr.New(apperr.KindNotFound, op, msg)
	}
	return nil
}

func storeErr(op string, err error) error {
	return apperr.Wrap(apperr.KindStoreUnavailable, op, err)
}

func preview(content string) string {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) <= previewChars {
		return content
	}
	runes := []rune(content)
	return string(runes[:previewChars]) + "..."
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// parseCost accepts a JSON number, a numeric string with optional thousands
// separators, or empty/null to clear.
func parseCost(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		t = strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if t == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil, fmt.Errorf("project cost %q is not a number", v)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("project cost must be a number")
	}
}
