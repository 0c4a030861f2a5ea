package audit

import (
	"encoding/json"
	"fmt"

	"kooperatif-backend/internal/models"

	"gorm.io/gorm"
)

type LogOptions struct {
	CooperativeID *uint
	UserID        uint
	UserName      string
	EntityType    string
	EntityID      uint
	Action        models.AuditAction
	Description   string
	Before        any
	After         any
}

// WriteLog: yönetişim/dağıtım aksiyonlarının iz kaydı. db parametresi
// çağıranın transaction'ı olabilir; log o zaman işlemle birlikte yazılır.
func WriteLog(db *gorm.DB, opts LogOptions) error {
	// PostgreSQL jsonb için boş string yerine "null" JSON string'i kullanmalıyız
	beforeStr := "null"
	afterStr := "null"

	if opts.Before != nil {
		if b, err := json.Marshal(opts.Before); err == nil {
			beforeStr = string(b)
		}
	}
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	entry := models.AuditLog{
		CooperativeID: opts.CooperativeID,
		UserID:        opts.UserID,
		UserName:      opts.UserName,
		EntityType:    opts.EntityType,
		EntityID:      opts.EntityID,
		Action:        opts.Action,
		Description:   opts.Description,
		BeforeData:    beforeStr,
		AfterData:     afterStr,
	}

	if err := db.Create(&entry).Error; err != nil {
		return fmt.Errorf("audit log kaydedilemedi: %w", err)
	}

	return nil
}
