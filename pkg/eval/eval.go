// Package eval compiles and evaluates the boolean expressions used by survey
// steps: display conditions and answer validators. Expressions use expr-lang
// syntax, e.g. `number(age) >= 18` or `includes(goals, "sleep")`.
package eval

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Predicate is a compiled boolean expression.
type Predicate struct {
	source  string
	program *vm.Program
}

// Compile parses src as a boolean expr-lang expression. Identifiers that are
// not bound at run time evaluate to nil rather than failing compilation, since
// the set of answered keys grows as a survey progresses.
func Compile(src string) (*Predicate, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("empty expression")
	}
	opts := append([]expr.Option{expr.AsBool(), expr.AllowUndefinedVariables()}, builtins()...)
	program, err := expr.Compile(src, opts...)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, err)
	}
	return &Predicate{source: src, program: program}, nil
}

// String returns the expression source.
func (p *Predicate) String() string { return p.source }

// Eval runs the predicate against env.
func (p *Predicate) Eval(env map[string]any) (bool, error) {
	output, err := expr.Run(p.program, env)
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", p.source, err)
	}
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not return bool (got %T: %v)", p.source, output, output)
	}
	return result, nil
}

// ConditionEnv builds the environment a display condition sees: every answer
// key as a top-level variable, plus the full map as `answers`.
func ConditionEnv(answers map[string]any) map[string]any {
	env := make(map[string]any, len(answers)+1)
	for k, v := range answers {
		env[k] = v
	}
	env["answers"] = answers
	return env
}

// ValidatorEnv builds the environment a validator sees: the candidate answer
// as `value` and the current answers as `answers`.
func ValidatorEnv(value any, answers map[string]any) map[string]any {
	return map[string]any{
		"value":   value,
		"answers": answers,
	}
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func builtins() []expr.Option {
	return []expr.Option{
		// includes reports whether a selection set contains id, or a string contains a substring.
		expr.Function("includes", func(params ...any) (any, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("includes: want 2 arguments, got %d", len(params))
			}
			item := fmt.Sprint(params[1])
			switch c := params[0].(type) {
			case nil:
				return false, nil
			case []string:
				for _, v := range c {
					if v == item {
						return true, nil
					}
				}
				return false, nil
			case []any:
				for _, v := range c {
					if fmt.Sprint(v) == item {
						return true, nil
					}
				}
				return false, nil
			case string:
				return strings.Contains(c, item), nil
			default:
				return nil, fmt.Errorf("includes: cannot search %T", params[0])
			}
		}),
		// blank reports whether v is absent, whitespace-only, or an empty set.
		expr.Function("blank", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("blank: want 1 argument, got %d", len(params))
			}
			return blank(params[0]), nil
		}),
		// number parses v as a float; unparsable input yields NaN so every comparison fails.
		expr.Function("number", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("number: want 1 argument, got %d", len(params))
			}
			return number(params[0]), nil
		}),
		expr.Function("count", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("count: want 1 argument, got %d", len(params))
			}
			switch c := params[0].(type) {
			case nil:
				return 0, nil
			case []string:
				return len(c), nil
			case []any:
				return len(c), nil
			case string:
				return len(c), nil
			default:
				return nil, fmt.Errorf("count: cannot count %T", params[0])
			}
		}),
		expr.Function("isEmail", func(params ...any) (any, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("isEmail: want 1 argument, got %d", len(params))
			}
			s, ok := params[0].(string)
			return ok && emailPattern.MatchString(strings.TrimSpace(s)), nil
		}),
	}
}

func blank(v any) bool {
	switch c := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(c) == ""
	case []string:
		return len(c) == 0
	case []any:
		return len(c) == 0
	}
	return false
}

func number(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}
