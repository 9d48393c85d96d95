package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowErrorFormat(t *testing.T) {
	err := NewError(ErrCodeNotFound, "graph not found")
	assert.Equal(t, "[NOT_FOUND] graph not found", err.Error())

	err = NewErrorf(ErrCodeDuplicateBranch, "branch %q already taken", "yes").WithStep("s-cond")
	assert.Equal(t, `[DUPLICATE_BRANCH] step s-cond: branch "yes" already taken`, err.Error())
}

func TestFlowErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewError(ErrCodeStore, "write failed").WithCause(cause)

	assert.ErrorIs(t, err, cause)

	var fe *FlowError
	require.True(t, errors.As(error(err), &fe))
	assert.Equal(t, ErrCodeStore, fe.Code)
}

func TestFlowErrorDetails(t *testing.T) {
	err := NewError(ErrCodeValidationRequired, "graph has errors").
		WithDetails(map[string]any{"error_count": 3})

	assert.Equal(t, 3, err.Details["error_count"])
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeTimeout, CodeOf(NewError(ErrCodeTimeout, "slow engine")))
	assert.Empty(t, CodeOf(errors.New("plain error")))
	assert.Empty(t, CodeOf(nil))
}
