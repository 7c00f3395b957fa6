package zorm

import (
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"ErrRecordNotFound", ErrRecordNotFound, true},
		{"sql.ErrNoRows", sql.ErrNoRows, true},
		{"wrapped ErrRecordNotFound", WrapQueryError("SELECT", "SELECT * FROM websites", nil, ErrRecordNotFound), true},
		{"relation wrapped", WrapRelationError("top_upvote", "Website", ErrRecordNotFound), true},
		{"other error", errors.New("some error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsNotFound(tt.err))
		})
	}
}

func TestIsUndefinedAttribute(t *testing.T) {
	assert.True(t, IsUndefinedAttribute(WrapRelationError("nope", "Website", ErrUndefinedAttribute)))
	assert.False(t, IsUndefinedAttribute(ErrRecordNotFound))
}

func TestWrapQueryError(t *testing.T) {
	assert.NoError(t, WrapQueryError("SELECT", "SELECT 1", nil, nil))
	assert.Same(t, ErrRecordNotFound, WrapQueryError("SELECT", "SELECT 1", nil, sql.ErrNoRows))

	cause := errors.New("connection reset")
	err := WrapQueryError("SELECT", "SELECT * FROM upvotes WHERE upvoteable_id = ?", []any{7}, cause)

	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "SELECT", qe.Operation)
	assert.Len(t, qe.Args, 1)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "upvoteable_id")
	assert.Contains(t, err.Error(), "[7]")
}

func TestWrapRelationError(t *testing.T) {
	assert.NoError(t, WrapRelationError("tags", "Project", nil))

	err := WrapRelationError("tags", "Project", ErrUnknownModel)
	assert.Same(t, err, WrapRelationError("tags", "Project", err), "the same relation is not wrapped twice")

	var re *RelationError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "tags", re.Relation)
	assert.Equal(t, "Project", re.Model)
	assert.ErrorIs(t, err, ErrUnknownModel)

	outer := WrapRelationError("projects", "Tag", err)
	assert.NotSame(t, err, outer, "a different relation adds its own context")
}

func TestFormatArgs(t *testing.T) {
	assert.Equal(t, "[]", formatArgs(nil))
	assert.Equal(t, "[1, website]", formatArgs([]any{1, "website"}))

	long := make([]any, 100)
	for i := range long {
		long[i] = "value"
	}
	got := formatArgs(long)
	assert.Len(t, got, 200)
	assert.True(t, strings.HasSuffix(got, "...]"), got)
}
