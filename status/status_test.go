package status

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusIsCategory(t *testing.T) {
	s := New(CategoryIOError, "disk full")
	assert.True(t, errors.Is(s, ErrIOError))
	assert.False(t, errors.Is(s, ErrS3Error))
}

func TestStatusUnwrap(t *testing.T) {
	s := Wrap(CategoryIOError, "read failed", io.EOF)
	assert.True(t, errors.Is(s, io.EOF))
	assert.True(t, errors.Is(s, ErrIOError))
	require.ErrorContains(t, s, "read failed")
}

func TestStatusWrapf(t *testing.T) {
	s := Wrapf(CategorySchemaError, nil, "dimension %q is not unique", "rows")
	assert.Equal(t, `SchemaError: dimension "rows" is not unique`, s.Error())
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "UnsupportedScheme", CategoryUnsupportedScheme.String())
	assert.Equal(t, "Unknown", Category(255).String())
}
