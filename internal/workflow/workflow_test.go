package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itbudget/internal/apperr"
)

func TestProposalLifecycle(t *testing.T) {
	next, err := Next(DocProposal, StatusDraft, ActionSubmit)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, next)

	for action, want := range map[Action]Status{
		ActionApprove:     StatusApproved,
		ActionReject:      StatusRejected,
		ActionRequestInfo: StatusMoreInfo,
	} {
		next, err := Next(DocProposal, StatusSubmitted, action)
		require.NoError(t, err)
		assert.Equal(t, want, next)
	}

	// MoreInfoRequired accepts resubmission and nothing else.
	next, err = Next(DocProposal, StatusMoreInfo, ActionSubmit)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, next)
	_, err = Next(DocProposal, StatusMoreInfo, ActionApprove)
	assert.True(t, apperr.IsKind(err, apperr.KindRuleViolation))
}

func TestTerminalStatesHaveNoEdges(t *testing.T) {
	for _, doc := range []DocType{DocProposal, DocPurchaseOrder, DocChargeOut} {
		for _, action := range []Action{ActionSubmit, ActionApprove, ActionReject, ActionRequestInfo} {
			_, err := Next(doc, StatusApproved, action)
			assert.Error(t, err, "%s/%s out of Approved", doc, action)
		}
	}
	_, err := Next(DocProposal, StatusRejected, ActionSubmit)
	assert.Error(t, err)
}

func TestPurchaseOrderRejectReturnsToDraft(t *testing.T) {
	next, err := Next(DocPurchaseOrder, StatusSubmitted, ActionReject)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, next)

	// No request-info edge for purchase orders.
	_, err = Next(DocPurchaseOrder, StatusSubmitted, ActionRequestInfo)
	assert.True(t, apperr.IsKind(err, apperr.KindRuleViolation))
}

func TestChargeOutRejectReturnsToDraft(t *testing.T) {
	next, err := Next(DocChargeOut, StatusSubmitted, ActionReject)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, next)
}

func TestExpenseHasNoTransitions(t *testing.T) {
	_, err := Next(DocExpense, StatusDraft, ActionSubmit)
	assert.True(t, apperr.IsKind(err, apperr.KindRuleViolation))
}

func TestEditable(t *testing.T) {
	assert.True(t, Editable(DocProposal, StatusDraft))
	assert.True(t, Editable(DocProposal, StatusMoreInfo))
	assert.False(t, Editable(DocProposal, StatusSubmitted))
	assert.False(t, Editable(DocPurchaseOrder, StatusMoreInfo))
	assert.True(t, Editable(DocExpense, StatusDraft))
	assert.False(t, Editable(DocChargeOut, StatusApproved))
}

func TestCommentRequired(t *testing.T) {
	assert.True(t, CommentRequired(ActionReject))
	assert.True(t, CommentRequired(ActionRequestInfo))
	assert.False(t, CommentRequired(ActionApprove))
	assert.False(t, CommentRequired(ActionSubmit))
}

func TestTerminal(t *testing.T) {
	assert.True(t, Terminal(DocProposal, StatusApproved))
	assert.True(t, Terminal(DocProposal, StatusRejected))
	assert.True(t, Terminal(DocExpense, StatusChargedOut))
	assert.False(t, Terminal(DocPurchaseOrder, StatusDraft))
	assert.False(t, Terminal(DocProposal, StatusMoreInfo))
}
