// Package cel provides CEL expression evaluation for endpoint query filtering.
package cel

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// Filter is a compiled CEL expression that matches against endpoint attributes.
type Filter struct {
	expr    string
	program cel.Program
}

// endpointVars declares the attributes every endpoint exposes to expressions.
func endpointVars() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Variable("name", cel.StringType),
		cel.Variable("description", cel.StringType),
		cel.Variable("polarity", cel.StringType),
		cel.Variable("schema", cel.StringType),
		cel.Variable("tags", cel.ListType(cel.StringType)),
	}
}

// Compile parses and type-checks a boolean CEL expression over the endpoint
// attributes name, description, polarity, schema and tags.
func Compile(expr string) (*Filter, error) {
	env, err := cel.NewEnv(endpointVars()...)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cel compile: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("cel compile: expression must be boolean, got %s", ast.OutputType())
	}

	prog, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("cel program: %w", err)
	}

	return &Filter{expr: expr, program: prog}, nil
}

// Expr returns the source expression.
func (f *Filter) Expr() string {
	return f.expr
}

// Match evaluates the filter against the given attributes.
// Returns false (not error) on evaluation errors or non-boolean results.
func (f *Filter) Match(attrs map[string]any) bool {
	out, _, err := f.program.Eval(attrs)
	if err != nil {
		return false
	}
	if out.Type() != types.BoolType {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
