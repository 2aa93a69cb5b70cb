// Package workflow holds the transition tables for every document family.
// Legality of a (status, action) pair is decided here and nowhere else;
// handlers never compare status strings directly.
package workflow

import "itbudget/internal/apperr"

type DocType string

const (
	DocProposal      DocType = "BudgetProposal"
	DocPurchaseOrder DocType = "PurchaseOrder"
	DocExpense       DocType = "Expense"
	DocChargeOut     DocType = "ChargeOut"
)

type Status string

const (
	StatusDraft      Status = "Draft"
	StatusSubmitted  Status = "Submitted"
	StatusApproved   Status = "Approved"
	StatusRejected   Status = "Rejected"
	StatusMoreInfo   Status = "MoreInfoRequired"
	StatusChargedOut Status = "ChargedOut"
)

type Action string

const (
	ActionSubmit      Action = "submit"
	ActionApprove     Action = "approve"
	ActionReject      Action = "reject"
	ActionRequestInfo Action = "request_info"
)

// transitions is the full state x action table per family. A missing entry
// means the edge does not exist.
//
// Purchase orders and charge-outs have no terminal rejection: reject returns
// them to Draft with the reason kept in the audit trail, matching how the
// finance desk actually handles a bounced order.
var transitions = map[DocType]map[Status]map[Action]Status{
	DocProposal: {
		StatusDraft: {
			ActionSubmit: StatusSubmitted,
		},
		StatusSubmitted: {
			ActionApprove:     StatusApproved,
			ActionReject:      StatusRejected,
			ActionRequestInfo: StatusMoreInfo,
		},
		StatusMoreInfo: {
			ActionSubmit: StatusSubmitted,
		},
	},
	DocPurchaseOrder: {
		StatusDraft: {
			ActionSubmit: StatusSubmitted,
		},
		StatusSubmitted: {
			ActionApprove: StatusApproved,
			ActionReject:  StatusDraft,
		},
	},
	DocChargeOut: {
		StatusDraft: {
			ActionSubmit: StatusSubmitted,
		},
		StatusSubmitted: {
			ActionApprove: StatusApproved,
			ActionReject:  StatusDraft,
		},
	},
	// Expenses never travel the submit/approve cycle; Draft is their only
	// editable state and ChargedOut is set as a charge-out side effect.
	DocExpense: {},
}

// Next returns the status an action leads to, or a RuleViolation when the
// current status has no such outgoing edge.
func Next(doc DocType, current Status, action Action) (Status, error) {
	byStatus, ok := transitions[doc]
	if !ok {
		return "", apperr.RuleViolation("unknown document type %q", doc)
	}
	next, ok := byStatus[current][action]
	if !ok {
		return "", apperr.RuleViolation("%s in status %s does not accept %s", doc, current, action)
	}
	return next, nil
}

// Editable reports whether header and items may still change. Proposals in
// MoreInfoRequired stay editable so the requester can amend and resubmit.
func Editable(doc DocType, s Status) bool {
	if s == StatusDraft {
		return true
	}
	return doc == DocProposal && s == StatusMoreInfo
}

// Terminal states never accept further edits or transitions.
func Terminal(doc DocType, s Status) bool {
	if s == StatusApproved || s == StatusRejected {
		return true
	}
	return doc == DocExpense && s == StatusChargedOut
}

// CommentRequired reports whether the action must carry a non-empty comment.
// Approve never requires one; reject and request-info always do.
func CommentRequired(action Action) bool {
	return action == ActionReject || action == ActionRequestInfo
}

// ValidStatus reports whether s is a known status for the family, used when
// validating a caller's observed-status precondition.
func ValidStatus(doc DocType, s Status) bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved:
		return true
	case StatusRejected, StatusMoreInfo:
		return doc == DocProposal
	case StatusChargedOut:
		return doc == DocExpense
	}
	return false
}
