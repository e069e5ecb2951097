package fderrors

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := New(CategoryConfig, CodeBadValue, "bad year")
	assert.Equal(t, "[CONFIG:BAD_VALUE] bad year", err.Error())

	wrapped := Wrap(CategoryStorage, CodeDownloadFailed, "data/file.csv", errors.New("timeout"))
	assert.Equal(t, "[STORAGE:DOWNLOAD_FAILED] data/file.csv: timeout", wrapped.Error())
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryConvert, CodeMissingColumn, "%s: column %q not found", "a.csv", "year")
	assert.Contains(t, err.Error(), `a.csv: column "year" not found`)
}

func TestUnwrap(t *testing.T) {
	cause := fs.ErrNotExist
	err := Wrap(CategoryPackage, CodeNoDescriptor, "pkg", cause)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	require.ErrorAs(t, error(err), new(*Error))
}

func TestIsMatchesCategoryAndCode(t *testing.T) {
	err := Newf(CategoryConvert, CodeBadLevels, "no levels for %q", "technology")

	assert.True(t, errors.Is(err, New(CategoryConvert, CodeBadLevels, "")))
	assert.False(t, errors.Is(err, New(CategoryConvert, CodeMultiAgg, "")))
	assert.False(t, errors.Is(err, New(CategoryConfig, CodeBadLevels, "")))
	assert.False(t, errors.Is(err, errors.New("plain")))
}
