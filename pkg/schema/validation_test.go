package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationResultValid(t *testing.T) {
	r := &ValidationResult{}
	assert.True(t, r.Valid())

	r.AddWarning("NO_TRIGGER", "no trigger declared")
	assert.True(t, r.Valid(), "warnings alone do not block")

	r.AddError(ErrCodeValidation, "no terminal step")
	assert.False(t, r.Valid())
}

func TestValidationResultFindingReferences(t *testing.T) {
	r := &ValidationResult{}
	r.AddStepError("s1", ErrCodeValidation, "missing url")
	r.AddConnectionError("c1", ErrCodeDuplicateBranch, "duplicate yes branch")
	r.AddStepWarning("s2", "NO_TRIGGER", "manual invocation only")

	require.Len(t, r.Errors, 2)
	assert.Equal(t, "s1", r.Errors[0].StepID)
	assert.Equal(t, SeverityError, r.Errors[0].Severity)
	assert.Equal(t, "c1", r.Errors[1].ConnectionID)

	require.Len(t, r.Warnings, 1)
	assert.Equal(t, "s2", r.Warnings[0].StepID)
	assert.Equal(t, SeverityWarning, r.Warnings[0].Severity)
}

func TestValidationResultMerge(t *testing.T) {
	a := &ValidationResult{}
	a.AddError(ErrCodeValidation, "first")

	b := &ValidationResult{}
	b.AddError(ErrCodeValidation, "second")
	b.AddWarning("NO_TRIGGER", "warn")

	a.Merge(b)
	assert.Len(t, a.Errors, 2)
	assert.Len(t, a.Warnings, 1)
	assert.Equal(t, "first", a.Errors[0].Message)
	assert.Equal(t, "second", a.Errors[1].Message)

	a.Merge(nil)
	assert.Len(t, a.Errors, 2)
}

func TestValidationResultToError(t *testing.T) {
	r := &ValidationResult{}
	assert.NoError(t, r.ToError())

	r.AddError(ErrCodeValidation, "no terminal step")
	err := r.ToError()
	require.Error(t, err)
	assert.Equal(t, "[VALIDATION_ERROR] no terminal step", err.Error())

	r.AddError(ErrCodeValidation, "orphan step")
	err = r.ToError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed with 2 errors")

	var fe *FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 2, fe.Details["error_count"])
}
