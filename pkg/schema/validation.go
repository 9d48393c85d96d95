package schema

import "fmt"

// FindingSeverity indicates whether a finding is an error or warning.
type FindingSeverity string

const (
	SeverityError   FindingSeverity = "error"
	SeverityWarning FindingSeverity = "warning"
)

// Finding is a single validation result. StepID or ConnectionID reference the
// offending element when applicable so the editor can navigate to it.
type Finding struct {
	Code         string          `json:"code"`
	Message      string          `json:"message"`
	Severity     FindingSeverity `json:"severity"`
	StepID       string          `json:"step_id,omitempty"`
	ConnectionID string          `json:"connection_id,omitempty"`
}

// ValidationResult aggregates every finding from a validation pass. Findings
// are data, not exceptions: the author needs the complete list to fix a large
// graph efficiently, so validation never stops at the first problem.
type ValidationResult struct {
	Errors   []Finding `json:"errors,omitempty"`
	Warnings []Finding `json:"warnings,omitempty"`
}

// Valid reports whether the graph is eligible for submission: no error
// findings. Warnings are surfaced but do not block.
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// AddError appends a graph-level error finding.
func (r *ValidationResult) AddError(code, message string) {
	r.Errors = append(r.Errors, Finding{Code: code, Message: message, Severity: SeverityError})
}

// AddStepError appends an error finding referencing a step.
func (r *ValidationResult) AddStepError(stepID, code, message string) {
	r.Errors = append(r.Errors, Finding{Code: code, Message: message, Severity: SeverityError, StepID: stepID})
}

// AddConnectionError appends an error finding referencing a connection.
func (r *ValidationResult) AddConnectionError(connectionID, code, message string) {
	r.Errors = append(r.Errors, Finding{Code: code, Message: message, Severity: SeverityError, ConnectionID: connectionID})
}

// AddWarning appends a graph-level warning finding.
func (r *ValidationResult) AddWarning(code, message string) {
	r.Warnings = append(r.Warnings, Finding{Code: code, Message: message, Severity: SeverityWarning})
}

// AddStepWarning appends a warning finding referencing a step.
func (r *ValidationResult) AddStepWarning(stepID, code, message string) {
	r.Warnings = append(r.Warnings, Finding{Code: code, Message: message, Severity: SeverityWarning, StepID: stepID})
}

// Merge combines another ValidationResult into this one.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// ToError converts the result to a FlowError if invalid, nil if valid.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	msg := r.Errors[0].Message
	if len(r.Errors) > 1 {
		msg = fmt.Sprintf("validation failed with %d errors", len(r.Errors))
	}

	return NewError(ErrCodeValidation, msg).
		WithDetails(map[string]any{
			"error_count":   len(r.Errors),
			"warning_count": len(r.Warnings),
			"errors":        r.Errors,
			"warnings":      r.Warnings,
		})
}
