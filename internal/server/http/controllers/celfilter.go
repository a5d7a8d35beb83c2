package controllers

import (
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	questionsvc "github.com/serhalp/queue-and-eh/internal/services/questions"
)

// celFilter wraps a compiled CEL program used by stream subscribers to
// narrow the question list they receive. When disabled, Eval always
// returns true.
type celFilter struct {
	prog    cel.Program
	enabled bool
}

func newCELFilter(expr string) (celFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return celFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("text", cel.StringType),
		cel.Variable("votes", cel.IntType),
		cel.Variable("author_id", cel.StringType),
		cel.Variable("created_at_ms", cel.IntType),
		// Current time in ms for windowed filters
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return celFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return celFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return celFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return celFilter{}, err
	}
	return celFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the compiled expression against a question. When disabled,
// returns true; evaluation errors exclude the question.
func (f celFilter) Eval(q questionsvc.Question) bool {
	if !f.enabled {
		return true
	}
	out, _, err := f.prog.Eval(map[string]any{
		"id":            q.ID,
		"text":          q.Text,
		"votes":         int64(q.Votes),
		"author_id":     q.AuthorID,
		"created_at_ms": q.CreatedAt.UnixMilli(),
		"now_ms":        time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// apply returns the questions matching the filter, preserving order.
func (f celFilter) apply(qs []questionsvc.Question) []questionsvc.Question {
	if !f.enabled {
		return qs
	}
	kept := make([]questionsvc.Question, 0, len(qs))
	for _, q := range qs {
		if f.Eval(q) {
			kept = append(kept, q)
		}
	}
	return kept
}
