package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMessageIncludesCategoryAndSeverity(t *testing.T) {
	err := New(CategoryEmit, SeverityFatal, "asset emission failed")
	require.Equal(t, "emit (fatal): asset emission failed", err.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, CategoryFileSystem, SeverityFatal, "write failed")
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "disk full")
}

func TestRecordsParseCarriesMarker(t *testing.T) {
	err := RecordsParse("/tmp/.records.json", errors.New("unexpected end of JSON input"))
	require.Contains(t, err.Error(), RecordsParseMarker)
	require.Equal(t, "/tmp/.records.json", err.Context["path"])
}

func TestConcurrentRunContext(t *testing.T) {
	err := ConcurrentRun("main")
	require.Equal(t, CategoryConcurrency, err.Category)
	require.Equal(t, "main", err.Context["compiler"])
}

func TestWithContextAccumulates(t *testing.T) {
	err := New(CategoryHook, SeverityError, "stage failed").
		WithContext("stage", "emit").
		WithContext("tap", "writer")
	require.Equal(t, "emit", err.Context["stage"])
	require.Equal(t, "writer", err.Context["tap"])
}
