// Package approval drives every status transition. One call is one atomic
// transaction: the caller's observed status is re-checked at write time
// (compare-and-swap on the status column), entity guards and ledger checks
// run inside the same transaction, and the audit record is written with the
// status change or not at all.
package approval

import (
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"itbudget/internal/apperr"
	"itbudget/internal/workflow"
	"itbudget/models"
)

// Request describes one transition attempt. Observed is the status the
// caller last read; if the row has since moved on, the call fails with
// Conflict and nothing is written.
type Request struct {
	Doc      workflow.DocType
	ID       uint
	Action   workflow.Action
	ActorID  uint
	Comment  string
	Observed workflow.Status
}

// Guard runs inside the transaction after the edge is known to be legal and
// before the status is written. Returning an error aborts the whole
// transition.
type Guard func(tx *gorm.DB) error

// Effect runs inside the transaction after the status write, for side
// effects the transition mandates (activating a project budget, flipping
// charged-out expenses).
type Effect func(tx *gorm.DB) error

// Apply performs the transition described by req against the table of
// model and returns the new status.
func Apply(db *gorm.DB, model any, req Request, guards []Guard, effects []Effect) (workflow.Status, error) {
	if workflow.CommentRequired(req.Action) && strings.TrimSpace(req.Comment) == "" {
		return "", apperr.ValidationFields("comment is required", map[string]string{"comment": "required"})
	}
	if !workflow.ValidStatus(req.Doc, req.Observed) {
		return "", apperr.ValidationFields("unknown observed status", map[string]string{"observedStatus": string(req.Observed)})
	}

	next, err := workflow.Next(req.Doc, req.Observed, req.Action)
	if err != nil {
		return "", err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		// Existence and the observed-status precondition resolve before any
		// guard runs, so a missing row is NotFound and a stale read is
		// Conflict, never a guard's RuleViolation.
		var current string
		row := tx.Model(model).Select("status").Where("id = ?", req.ID).Row()
		if err := row.Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound(string(req.Doc))
			}
			return apperr.Storage(err)
		}
		if current != string(req.Observed) {
			return apperr.Conflict("document status changed, re-read and retry")
		}

		for _, guard := range guards {
			if err := guard(tx); err != nil {
				return err
			}
		}

		// CAS: only the row still in the observed status is updated.
		result := tx.Model(model).
			Where("id = ? AND status = ?", req.ID, req.Observed).
			Update("status", next)
		if result.Error != nil {
			return apperr.Storage(result.Error)
		}
		if result.RowsAffected == 0 {
			return apperr.Conflict("document status changed, re-read and retry")
		}

		for _, effect := range effects {
			if err := effect(tx); err != nil {
				return err
			}
		}

		audit := models.AuditRecord{
			DocType:    string(req.Doc),
			DocID:      req.ID,
			UserID:     req.ActorID,
			Action:     string(req.Action),
			Comment:    req.Comment,
			FromStatus: string(req.Observed),
			ToStatus:   string(next),
		}
		if err := tx.Create(&audit).Error; err != nil {
			return apperr.Storage(err)
		}
		return nil
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) && appErr.Kind == apperr.KindStorage {
			slog.Error("transition aborted by storage failure",
				"doc", req.Doc, "id", req.ID, "action", req.Action, "error", appErr.Err)
		}
		return "", err
	}

	slog.Info("document transitioned",
		"doc", req.Doc, "id", req.ID, "action", req.Action,
		"from", req.Observed, "to", next, "actor", req.ActorID)
	return next, nil
}

// Trail returns a document's audit records, oldest first.
func Trail(db *gorm.DB, doc workflow.DocType, id uint) ([]models.AuditRecord, error) {
	var records []models.AuditRecord
	err := db.Where("doc_type = ? AND doc_id = ?", string(doc), id).
		Order("id asc").Find(&records).Error
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return records, nil
}
