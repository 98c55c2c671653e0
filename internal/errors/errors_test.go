package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesClassificationFromCode(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{"config", ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{"source", ErrCodeFileNotFound, CategorySource, SeverityError, false},
		{"network timeout", ErrCodeNetworkTimeout, CategoryNetwork, SeverityWarning, true},
		{"embed failure", ErrCodeEmbedFailed, CategoryNetwork, SeverityWarning, true},
		{"auth", ErrCodeAuthFailed, CategoryValidation, SeverityFatal, false},
		{"model not found", ErrCodeModelNotFound, CategoryValidation, SeverityFatal, false},
		{"collection not found", ErrCodeCollectionNotFound, CategoryValidation, SeverityFatal, false},
		{"cancelled", ErrCodeCancelled, CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestSyncError_ErrorFormat(t *testing.T) {
	err := New(ErrCodeCollectionNotFound, "collection \"docs\" does not exist", nil)
	assert.Equal(t, "[ERR_403_COLLECTION_NOT_FOUND] collection \"docs\" does not exist", err.Error())
}

func TestSyncError_UnwrapAndIs(t *testing.T) {
	// Given: a SyncError wrapping an underlying cause
	cause := stderrors.New("connection refused")
	err := Wrap(ErrCodeNetworkUnavailable, cause)

	// Then: errors.Is matches both the cause and same-code SyncErrors
	require.NotNil(t, err)
	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, stderrors.Is(err, New(ErrCodeNetworkUnavailable, "other message", nil)))
	assert.False(t, stderrors.Is(err, New(ErrCodeNetworkTimeout, "other code", nil)))
}

func TestWrap_NilError(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestWithDetailAndSuggestion(t *testing.T) {
	err := New(ErrCodeFileNotFound, "missing", nil).
		WithDetail("path", "/tmp/a.txt").
		WithSuggestion("check the path")

	assert.Equal(t, "/tmp/a.txt", err.Details["path"])
	assert.Equal(t, "check the path", err.Suggestion)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeUpsertFailed, "upsert", nil)))
	assert.False(t, IsRetryable(New(ErrCodeAuthFailed, "auth", nil)))
	assert.False(t, IsRetryable(stderrors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(AuthError("bad token", nil)))
	assert.True(t, IsFatal(CollectionNotFound("docs")))
	assert.True(t, IsFatal(ModelNotFound("gpt-nope", nil)))
	assert.False(t, IsFatal(Cancelled(nil)))
	assert.False(t, IsFatal(New(ErrCodeFileNotFound, "missing", nil)))
	assert.False(t, IsFatal(nil))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeCancelled, GetCode(Cancelled(nil)))
	assert.Equal(t, "", GetCode(stderrors.New("plain")))
}
