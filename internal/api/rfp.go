/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - RFP Endpoints
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/rfp"
)

type createRFPRequest struct {
	ProjectName string `json:"project_name"`
	Link        string `json:"link"`
}

type rfpResponse struct {
	Success bool     `json:"success"`
	RFP     *rfp.RFP `json:"rfp"`
	Message string   `json:"message,omitempty"`
}

type rfpDetailResponse struct {
	Success   bool           `json:"success"`
	RFP       *rfp.RFP       `json:"rfp"`
	Documents []rfp.Document `json:"documents"`
}

type documentsResponse struct {
	Success   bool           `json:"success"`
	Documents []rfp.Document `json:"documents"`
}

func (h *handler) listRFPs(w http.ResponseWriter, r *http.Request) {
	rfps, err := h.RFPs.List(r.Context())
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "rfps": rfps})
}

func (h *handler) createRFP(w http.ResponseWriter, r *http.Request) {
	var req createRFPRequest
	if err := decodeJSON(r, &req); err != nil {
		sendError(w, r, err)
		return
	}
	created, err := h.RFPs.Create(r.Context(), req.ProjectName, req.Link)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusCreated, rfpResponse{Success: true, RFP: created, Message: "RFP created successfully"})
}

func (h *handler) getRFP(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		sendError(w, r, err)
		return
	}
	record, err := h.RFPs.Get(r.Context(), id)
	if err != nil {
		sendError(w, r, err)
		return
	}
	docs, err := h.RFPs.ListDocuments(r.Context(), id, false)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, rfpDetailResponse{Success: true, RFP: record, Documents: docs})
}

func (h *handler) updateRFP(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		sendError(w, r, err)
		return
	}
	var fields map[string]any
	if err := decodeJSON(r, &fields); err != nil {
		sendError(w, r, err)
		return
	}
	updated, err := h.RFPs.Update(r.Context(), id, fields)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, rfpResponse{Success: true, RFP: updated, Message: "RFP updated successfully"})
}

func (h *handler) deleteRFP(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		sendError(w, r, err)
		return
	}
	if err := h.RFPs.Delete(r.Context(), id); err != nil {
		sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, messageResponse{Success: true, Message: "RFP deleted successfully"})
}

func (h *handler) uploadDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		sendError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendFailure(w, http.StatusRequestEntityTooLarge, "Document exceeds the upload size limit")
			return
		}
		sendFailure(w, http.StatusBadRequest, "Invalid multipart upload")
		return
	}
	file, header, err := r.FormFile("document")
	if err != nil {
		sendFailure(w, http.StatusBadRequest, "No document provided")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		sendFailure(w, http.StatusBadRequest, "Failed to read document")
		return
	}

	doc, err := h.Intake.Upload(r.Context(), id, header.Filename, content)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"document": doc,
		"message":  "Document uploaded successfully",
	})
}

func (h *handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		sendError(w, r, err)
		return
	}
	if _, err := h.RFPs.Get(r.Context(), id); err != nil {
		sendError(w, r, err)
		return
	}
	docs, err := h.RFPs.ListDocuments(r.Context(), id, false)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, documentsResponse{Success: true, Documents: docs})
}

func (h *handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		sendError(w, r, err)
		return
	}
	if err := h.RFPs.DeleteDocument(r.Context(), id); err != nil {
		sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Document deleted successfully"})
}

func (h *handler) analyze(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		sendError(w, r, err)
		return
	}
	outcome, err := h.Intake.Analyze(r.Context(), id)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, outcome)
}

func (h *handler) findMembers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		sendError(w, r, err)
		return
	}
	result, err := h.Intake.FindMembers(r.Context(), id)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, result)
}
