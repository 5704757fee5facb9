/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Error Kinds
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package apperr classifies failures so the HTTP layer and the CLI can report
// them consistently.
package apperr

import (
	"errors"
	"net/http"
)

// Kind identifies a class of failure.
type Kind string

const (
	KindUnknown                 Kind = "unknown"
	KindInputValidation         Kind = "input_validation"
	KindNotFound                Kind = "not_found"
	KindStoreUnavailable        Kind = "store_unavailable"
	KindCollaboratorUnavailable Kind = "collaborator_unavailable"
	KindBusy                    Kind = "busy"
	KindNoDocuments             Kind = "no_documents"
	KindKBNotReady              Kind = "kb_not_ready"
	KindUnsupportedFormat       Kind = "unsupported_format"
	KindExtractionFailed        Kind = "extraction_failed"
	KindContextTooLarge         Kind = "context_too_large"
	KindTimeout                 Kind = "timeout"
)

// Error is a classified error. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match on kind alone, e.g. errors.Is(err, apperr.Busy).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Op == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Kind-only sentinels for use with errors.Is.
var (
	InputValidation         = &Error{Kind: KindInputValidation}
	NotFound                = &Error{Kind: KindNotFound}
	StoreUnavailable        = &Error{Kind: KindStoreUnavailable}
	CollaboratorUnavailable = &Error{Kind: KindCollaboratorUnavailable}
	Busy                    = &Error{Kind: KindBusy}
	NoDocuments             = &Error{Kind: KindNoDocuments}
	KBNotReady              = &Error{Kind: KindKBNotReady}
	UnsupportedFormat       = &Error{Kind: KindUnsupportedFormat}
	ExtractionFailed        = &Error{Kind: KindExtractionFailed}
	ContextTooLarge         = &Error{Kind: KindContextTooLarge}
	Timeout                 = &Error{Kind: KindTimeout}
)

// New returns a classified error with a message.
func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns the text shown to API clients: the classified message
// without its operation prefix.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

// HTTPStatus maps a kind to the status code returned to API clients.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInputValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindBusy, KindKBNotReady:
		return http.StatusConflict
	case KindNoDocuments:
		return http.StatusUnprocessableEntity
	case KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case KindTimeout:
		return http.StatusAccepted
	case KindStoreUnavailable, KindCollaboratorUnavailable:
		return http.StatusServiceUnavailable
	case KindContextTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
