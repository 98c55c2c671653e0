package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatForCLI(t *testing.T) {
	err := CollectionNotFound("docs")
	out := FormatForCLI(err)

	assert.Contains(t, out, "Error: collection \"docs\" does not exist")
	assert.Contains(t, out, "Hint: create it first")
	assert.Contains(t, out, "Code: ERR_403_COLLECTION_NOT_FOUND")
}

func TestFormatForCLI_PlainError(t *testing.T) {
	out := FormatForCLI(stderrors.New("something broke"))

	assert.Contains(t, out, "something broke")
	assert.Contains(t, out, ErrCodeInternal)
}

func TestFormatForCLI_Nil(t *testing.T) {
	assert.Equal(t, "", FormatForCLI(nil))
}

func TestFormatForLog(t *testing.T) {
	cause := stderrors.New("dial tcp: refused")
	err := Wrap(ErrCodeNetworkUnavailable, cause).WithDetail("host", "localhost:6333")

	attrs := FormatForLog(err)

	assert.Equal(t, ErrCodeNetworkUnavailable, attrs["error_code"])
	assert.Equal(t, "NETWORK", attrs["category"])
	assert.Equal(t, true, attrs["retryable"])
	assert.Equal(t, "dial tcp: refused", attrs["cause"])
	assert.Equal(t, "localhost:6333", attrs["detail_host"])
}

func TestFormatForLog_PlainError(t *testing.T) {
	attrs := FormatForLog(stderrors.New("plain"))
	assert.Equal(t, "plain", attrs["error"])
}
