package monitor

import "fmt"

// FailureKind classifies why a rule's evaluation failed. Failures never abort
// the pass; they are collected in the summary and the rule is retried on the
// next tick.
type FailureKind string

const (
	// FailureConfiguration marks a malformed or unroutable rule.
	FailureConfiguration FailureKind = "configuration"

	// FailureQuery marks a failed stock or ledger lookup.
	FailureQuery FailureKind = "query"

	// FailureDelivery marks a transport failure after fallback was exhausted.
	FailureDelivery FailureKind = "delivery"

	// FailureLedgerWrite marks a record append that failed after the alert
	// was already delivered. The cooldown has no anchor, so the alert may be
	// re-sent next tick.
	FailureLedgerWrite FailureKind = "ledger_write"
)

// RuleFailure describes one rule's failed evaluation.
type RuleFailure struct {
	RuleID   string      `json:"rule_id"`
	ItemName string      `json:"item_name"`
	Kind     FailureKind `json:"kind"`
	Err      error       `json:"-"`
	Cause    string      `json:"cause"`
}

func (f RuleFailure) Error() string {
	return fmt.Sprintf("rule %s (%s): %s: %v", f.RuleID, f.ItemName, f.Kind, f.Err)
}

// Unwrap exposes the underlying error to errors.Is/As.
func (f RuleFailure) Unwrap() error { return f.Err }

func newFailure(ruleID, itemName string, kind FailureKind, err error) RuleFailure {
	return RuleFailure{
		RuleID:   ruleID,
		ItemName: itemName,
		Kind:     kind,
		Err:      err,
		Cause:    err.Error(),
	}
}
