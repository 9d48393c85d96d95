package expressions

import "context"

// Engine compiles and evaluates authored expressions on process steps.
// Three implementations: CEL and Expr for condition expressions, GoJQ for
// response extract paths. The validator uses Check to syntax-check authored
// expressions before submission; Evaluate backs the editor's "test
// expression" affordance. Evaluation semantics at runtime belong to the
// execution engine.
type Engine interface {
	Name() string
	Check(expression string) error
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// ForLanguage returns the condition-expression engine for the declared
// language. An empty language defaults to CEL.
func ForLanguage(language string, celEng *CELEngine, exprEng *ExprEngine) Engine {
	if language == "expr" {
		return exprEng
	}
	return celEng
}
