package models

import "gorm.io/gorm"

// AuditRecord is one immutable entry in a document's trail. It is written in
// the same transaction as the status change it describes.
type AuditRecord struct {
	gorm.Model
	DocType    string `json:"docType" gorm:"not null;index:idx_audit_doc"`
	DocID      uint   `json:"docId" gorm:"not null;index:idx_audit_doc"`
	UserID     uint   `json:"userId" gorm:"not null"`
	Action     string `json:"action" gorm:"not null"`
	Comment    string `json:"comment"`
	FromStatus string `json:"fromStatus"`
	ToStatus   string `json:"toStatus"`
}
