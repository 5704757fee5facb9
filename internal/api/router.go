/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - HTTP Router
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package api exposes the directory, RFP intake, knowledge base and tender
// feed over a JSON HTTP interface.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/auth"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/directory"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/knowledgebase"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/logging"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/matching"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/pipeline"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/predicate"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/registry"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/rfp"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/tenders"
)

// ServerName is reported by the health check.
const ServerName = "opf-directory"

// ServerVersion is set at build time.
var ServerVersion = "dev"

// Directory is the member search surface.
type Directory interface {
	Search(ctx context.Context, req directory.SearchRequest, mode predicate.Mode) ([]directory.Member, error)
	Stats(ctx context.Context) (directory.Stats, error)
	GetByEmail(ctx context.Context, email string) (directory.Member, error)
	FilterOptions(ctx context.Context) (map[registry.FilterCategory][]string, error)
}

// RFPStore manages opportunity records and their documents.
type RFPStore interface {
	Create(ctx context.Context, projectName, link string) (*rfp.RFP, error)
	Get(ctx context.Context, id int64) (*rfp.RFP, error)
	List(ctx context.Context) ([]*rfp.RFP, error)
	Update(ctx context.Context, id int64, fields map[string]any) (*rfp.RFP, error)
	Delete(ctx context.Context, id int64) error
	ListDocuments(ctx context.Context, rfpID int64, withContent bool) ([]rfp.Document, error)
	DeleteDocument(ctx context.Context, id int64) error
}

// Intake uploads, analyses and matches RFPs.
type Intake interface {
	Upload(ctx context.Context, rfpID int64, filename string, content []byte) (*rfp.Document, error)
	Analyze(ctx context.Context, rfpID int64) (*pipeline.Outcome, error)
	FindMembers(ctx context.Context, rfpID int64) (matching.Result, error)
}

// KnowledgeBase is the company document corpus.
type KnowledgeBase interface {
	Initialize(ctx context.Context, force bool) (knowledgebase.InitResult, error)
	Status() knowledgebase.Status
}

// TenderStore lists and updates scraped tenders.
type TenderStore interface {
	List(ctx context.Context, f tenders.Filter) ([]tenders.Tender, error)
	MarkProcessed(ctx context.Context, id int64, processed bool) error
	Stats(ctx context.Context) (*tenders.Stats, error)
}

// ScrapeRunner starts tender scrapes.
type ScrapeRunner interface {
	Run(ctx context.Context, key string) (*tenders.Summary, error)
}

// Deps wires the API to its services. Tokens and Users may be nil when
// authentication is disabled.
type Deps struct {
	Directory Directory
	RFPs      RFPStore
	Intake    Intake
	KB        KnowledgeBase
	Tenders   TenderStore
	Scrapes   ScrapeRunner

	Tokens           *auth.TokenStore
	Users            *auth.UserStore
	AuthEnabled      bool
	MaxLoginAttempts int

	CORSOrigins    []string
	MaxUploadBytes int64
}

type handler struct {
	Deps
}

// NewRouter builds the complete HTTP handler: routes, authentication,
// request logging and CORS.
func NewRouter(d Deps) http.Handler {
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 16 << 20
	}
	h := &handler{Deps: d}

	r := mux.NewRouter()
	r.HandleFunc(auth.HealthCheckPath, h.health).Methods(http.MethodGet)

	r.HandleFunc("/search", h.search).Methods(http.MethodPost)
	r.HandleFunc("/api/stats", h.stats).Methods(http.MethodGet)
	r.HandleFunc("/api/filters", h.filters).Methods(http.MethodGet)
	r.HandleFunc("/api/member", h.member).Methods(http.MethodGet)

	r.HandleFunc("/api/rfp-list", h.listRFPs).Methods(http.MethodGet)
	r.HandleFunc("/api/rfp-create", h.createRFP).Methods(http.MethodPost)
	r.HandleFunc("/api/rfp-update/{id}", h.updateRFP).Methods(http.MethodPut)
	r.HandleFunc("/api/rfp-delete/{id}", h.deleteRFP).Methods(http.MethodDelete)
	r.HandleFunc("/api/rfp/{id}", h.getRFP).Methods(http.MethodGet)
	r.HandleFunc("/api/rfp/{id}/find-members", h.findMembers).Methods(http.MethodPost)
	r.HandleFunc("/api/ai-analyze/{id}", h.analyze).Methods(http.MethodPost)
	r.HandleFunc("/api/document-upload/{id}", h.uploadDocument).Methods(http.MethodPost)
	r.HandleFunc("/api/documents/{id}", h.listDocuments).Methods(http.MethodGet)
	r.HandleFunc("/api/document-delete/{id}", h.deleteDocument).Methods(http.MethodDelete)

	r.HandleFunc("/api/init-knowledge-base", h.initKnowledgeBase).Methods(http.MethodPost)
	r.HandleFunc("/api/knowledge-base-status", h.knowledgeBaseStatus).Methods(http.MethodGet)

	for path, key := range scrapeRoutes {
		r.HandleFunc(path, h.scrape(key)).Methods(http.MethodPost)
	}
	r.HandleFunc("/api/tenders/list", h.listTenders).Methods(http.MethodGet)
	r.HandleFunc("/api/tenders/mark-processed", h.markProcessed).Methods(http.MethodPost)
	r.HandleFunc("/api/tenders/stats", h.tenderStats).Methods(http.MethodGet)

	r.HandleFunc(auth.LoginPath, h.login).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", h.logout).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		sendFailure(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		sendFailure(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	var out http.Handler = auth.Middleware(d.Tokens, d.Users, d.AuthEnabled)(r)
	out = requestLogger(out)
	if len(d.CORSOrigins) > 0 {
		out = cors.New(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			ExposedHeaders:   []string{requestIDHeader},
			AllowCredentials: true,
		}).Handler(out)
	}
	return out
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"server":  ServerName,
		"version": ServerVersion,
	})
}

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID returns the id assigned to the current request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))

		logging.Info("http request", "request_id", id, "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start).String())
	})
}
