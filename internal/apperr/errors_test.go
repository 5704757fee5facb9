/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Error Kind Tests
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapAndKindOf(t *testing.T) {
	base := errors.New("connection refused")
	err := Wrap(KindStoreUnavailable, "directory.search", base)

	assert.Equal(t, KindStoreUnavailable, KindOf(err))
	assert.ErrorIs(t, err, base)
	assert.ErrorIs(t, err, StoreUnavailable)
	assert.NotErrorIs(t, err, Busy)
	assert.Equal(t, "directory.search: connection refused", err.Error())

	outer := fmt.Errorf("handler: %w", err)
	assert.Equal(t, KindStoreUnavailable, KindOf(outer))
	assert.ErrorIs(t, outer, StoreUnavailable)
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(KindBusy, "op", nil))
}

func TestNew(t *testing.T) {
	err := New(KindInputValidation, "rfp.create", "project_name is required")
	assert.Equal(t, "rfp.create: project_name is required", err.Error())
	assert.ErrorIs(t, err, InputValidation)
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("x")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Kind]int{
		KindInputValidation:         http.StatusBadRequest,
		KindNotFound:                http.StatusNotFound,
		KindBusy:                    http.StatusConflict,
		KindKBNotReady:              http.StatusConflict,
		KindNoDocuments:             http.StatusUnprocessableEntity,
		KindUnsupportedFormat:       http.StatusUnsupportedMediaType,
		KindTimeout:                 http.StatusAccepted,
		KindStoreUnavailable:        http.StatusServiceUnavailable,
		KindCollaboratorUnavailable: http.StatusServiceUnavailable,
		KindUnknown:                 http.StatusInternalServerError,
	}
	for kind, want := range tests {
		assert.Equal(t, want, HTTPStatus(kind), string(kind))
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "RFP not found", Message(New(KindNotFound, "rfp.get", "RFP not found")))
	assert.Equal(t, "disk full", Message(fmt.Errorf("save: %w", Wrap(KindStoreUnavailable, "rfp.save", errors.New("disk full")))))
	assert.Equal(t, "busy", Message(&Error{Kind: KindBusy}))
	assert.Equal(t, "plain", Message(errors.New("plain")))
}
