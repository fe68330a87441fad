package engine

// ConsentMessage is reported when a consent-gated step is left without consent.
const ConsentMessage = "Please agree to the terms to continue."

// DefaultValidationMessage is reported when a step's validator rejects an
// answer and the step declares no message of its own.
const DefaultValidationMessage = "Please provide a valid answer."

// ValidationResult is the outcome of one validation attempt.
type ValidationResult struct {
	OK      bool
	Message string
}

// Validate decides whether the step may be left forward with the given
// answer. Consent is checked first and overrides the step's validator.
// Validate never mutates answers.
func Validate(d Descriptor, answer any, consent bool, answers map[string]any) ValidationResult {
	if d.ConsentAnswerKey != "" && !consent {
		return ValidationResult{Message: ConsentMessage}
	}
	if d.Validate != nil && !d.Validate(answer, answers) {
		msg := d.ValidationMessage
		if msg == "" {
			msg = DefaultValidationMessage
		}
		return ValidationResult{Message: msg}
	}
	return ValidationResult{OK: true}
}
