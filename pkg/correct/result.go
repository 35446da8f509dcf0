// Package correct rewrites model-drafted spatial SQL against a catalog
// snapshot: identifier resolution, geometry column canonicalization, SRID
// normalization and a final safety gate. The pipeline is pure and
// deterministic; it performs no I/O.
package correct

import "fmt"

// Reason identifies why a draft was rejected.
type Reason string

const (
	ReasonNotReadOnly          Reason = "NotReadOnly"
	ReasonMultipleStatements   Reason = "MultipleStatements"
	ReasonUnresolvedIdentifier Reason = "UnresolvedIdentifier"
	ReasonUnknownTable         Reason = "UnknownTable"
	ReasonAmbiguousIdentifier  Reason = "AmbiguousIdentifier"
	ReasonEmptyStatement       Reason = "EmptyStatement"
	ReasonInjection            Reason = "InjectionDetected"
)

// Finding records a condition the rewrite stages could not repair. Findings
// do not abort the pipeline; the validator rejects if any remain.
type Finding struct {
	Reason     Reason
	Identifier string
	Detail     string
}

// Rejection is a terminal refusal of the draft. Retrying the same draft
// against the same catalog yields the same result; the only recourse is a
// new draft.
type Rejection struct {
	Reason     Reason `json:"reason"`
	Identifier string `json:"identifier,omitempty"`
	Message    string `json:"message"`
}

func (r *Rejection) Error() string {
	if r.Identifier != "" {
		return fmt.Sprintf("%s: %s (%s)", r.Reason, r.Message, r.Identifier)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Message)
}

// Result carries either a corrected, validated SQL string with the applied
// rule annotations, or a rejection. Never both.
type Result struct {
	SQL       string     `json:"sql,omitempty"`
	Applied   []string   `json:"applied,omitempty"`
	Rejection *Rejection `json:"rejection,omitempty"`
}

// OK reports whether the draft survived correction and validation.
func (r Result) OK() bool {
	return r.Rejection == nil
}

func rejected(reason Reason, identifier, message string) Result {
	return Result{Rejection: &Rejection{Reason: reason, Identifier: identifier, Message: message}}
}
