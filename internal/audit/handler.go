package audit

import (
	"fmt"

	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GET /api/audit-logs?entity_type=proposal&entity_id=3&limit=50
func ListAuditLogsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.AuditLog{}).Order("created_at DESC")

		// coop_admin / member sadece kendi kooperatifini görür
		role, _ := c.Locals(auth.CtxUserRoleKey).(models.UserRole)
		if role != models.RoleSuperAdmin {
			coopIDPtr, ok := c.Locals(auth.CtxCooperativeIDKey).(*uint)
			if !ok || coopIDPtr == nil {
				return fiber.NewError(fiber.StatusForbidden, "Kooperatif bilgisi bulunamadı")
			}
			q = q.Where("cooperative_id = ?", *coopIDPtr)
		} else if cid := c.Query("cooperative_id"); cid != "" {
			q = q.Where("cooperative_id = ?", cid)
		}

		if et := c.Query("entity_type"); et != "" {
			q = q.Where("entity_type = ?", et)
		}
		if eid := c.Query("entity_id"); eid != "" {
			q = q.Where("entity_id = ?", eid)
		}

		limit := 100
		if ls := c.Query("limit"); ls != "" {
			if _, err := fmt.Sscan(ls, &limit); err != nil || limit <= 0 || limit > 500 {
				return fiber.NewError(fiber.StatusBadRequest, "limit geçersiz")
			}
		}

		var logs []models.AuditLog
		if err := q.Limit(limit).Find(&logs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Audit loglar listelenemedi")
		}

		return c.JSON(logs)
	}
}
