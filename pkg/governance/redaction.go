// Package governance applies a survey's redaction policy to answer values
// before they are written to traces or logs.
package governance

import (
	"regexp"

	"github.com/ormasoftchile/wizard/pkg/schema"
)

// CompiledRedaction is a pre-compiled redaction rule.
type CompiledRedaction struct {
	Pattern *regexp.Regexp
	Replace string
}

// CompileRedactionRules compiles redaction rules from the survey metadata.
func CompileRedactionRules(rules []schema.RedactionRule) ([]*CompiledRedaction, error) {
	var compiled []*CompiledRedaction
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, &CompiledRedaction{
			Pattern: re,
			Replace: r.Replace,
		})
	}
	return compiled, nil
}

// RedactOutput applies all compiled redaction rules to the given text.
func RedactOutput(output string, rules []*CompiledRedaction) string {
	result := output
	for _, r := range rules {
		result = r.Pattern.ReplaceAllString(result, r.Replace)
	}
	return result
}

// Redactor returns a function applying rules to text, or nil when there
// are no rules.
func Redactor(rules []*CompiledRedaction) func(string) string {
	if len(rules) == 0 {
		return nil
	}
	return func(s string) string { return RedactOutput(s, rules) }
}
