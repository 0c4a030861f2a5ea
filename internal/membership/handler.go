package membership

import (
	"fmt"
	"strings"
	"time"

	"kooperatif-backend/internal/audit"
	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CreateMemberRequest struct {
	Name             string `json:"name"`
	Phone            string `json:"phone"`
	Type             string `json:"type"` // driver | customer | staff | other
	OwnershipShares  *int   `json:"ownership_shares"`
	InvestmentShares *int   `json:"investment_shares"`
	VotingRights     *bool  `json:"voting_rights"` // boşsa true
	JoinedDate       string `json:"joined_date"`   // "2025-01-15", boşsa bugün
	// super_admin için opsiyonel:
	CooperativeID *uint `json:"cooperative_id"`
}

type UpdateMemberRequest struct {
	Name             *string `json:"name"`
	Phone            *string `json:"phone"`
	Type             *string `json:"type"`
	OwnershipShares  *int    `json:"ownership_shares"`
	InvestmentShares *int    `json:"investment_shares"`
	VotingRights     *bool   `json:"voting_rights"`
}

type MemberResponse struct {
	ID               uint   `json:"id"`
	CooperativeID    uint   `json:"cooperative_id"`
	Name             string `json:"name"`
	Phone            string `json:"phone"`
	Type             string `json:"type"`
	OwnershipShares  int    `json:"ownership_shares"`
	InvestmentShares int    `json:"investment_shares"`
	VotingRights     bool   `json:"voting_rights"`
	IsActive         bool   `json:"is_active"`
	JoinedDate       string `json:"joined_date"`
}

// -------------------------
// Yardımcı: Kullanıcı bilgilerini al
// -------------------------
func getUserInfo(c *fiber.Ctx) (uint, string, *uint, error) {
	userIDVal := c.Locals(auth.CtxUserIDKey)
	userID, ok := userIDVal.(uint)
	if !ok {
		return 0, "", nil, fiber.NewError(fiber.StatusForbidden, "Kullanıcı bilgisi alınamadı")
	}

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		return 0, "", nil, fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı bulunamadı")
	}

	var coopID *uint
	cVal := c.Locals(auth.CtxCooperativeIDKey)
	if cPtr, ok := cVal.(*uint); ok && cPtr != nil {
		coopID = cPtr
	}

	return userID, user.Name, coopID, nil
}

// body'den gelen cooperative_id + rol
func resolveCoopIDFromBodyOrRole(c *fiber.Ctx, bodyCoopID *uint) (uint, error) {
	roleVal := c.Locals(auth.CtxUserRoleKey)
	role, ok := roleVal.(models.UserRole)
	if !ok {
		return 0, fiber.NewError(fiber.StatusForbidden, "Rol bilgisi alınamadı")
	}

	if role != models.RoleSuperAdmin {
		cVal := c.Locals(auth.CtxCooperativeIDKey)
		cPtr, ok := cVal.(*uint)
		if !ok || cPtr == nil {
			return 0, fiber.NewError(fiber.StatusForbidden, "Kooperatif bilgisi bulunamadı")
		}
		return *cPtr, nil
	}

	// super_admin
	if bodyCoopID == nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "cooperative_id zorunlu")
	}
	return *bodyCoopID, nil
}

// query'den gelen cooperative_id + rol
func resolveCoopIDFromQueryOrRole(c *fiber.Ctx) (uint, error) {
	roleVal := c.Locals(auth.CtxUserRoleKey)
	role, ok := roleVal.(models.UserRole)
	if !ok {
		return 0, fiber.NewError(fiber.StatusForbidden, "Rol bilgisi alınamadı")
	}

	if role != models.RoleSuperAdmin {
		cVal := c.Locals(auth.CtxCooperativeIDKey)
		cPtr, ok := cVal.(*uint)
		if !ok || cPtr == nil {
			return 0, fiber.NewError(fiber.StatusForbidden, "Kooperatif bilgisi bulunamadı")
		}
		return *cPtr, nil
	}

	// super_admin
	cidStr := c.Query("cooperative_id")
	if cidStr == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, "cooperative_id zorunlu")
	}
	var cid uint
	if _, err := fmt.Sscan(cidStr, &cid); err != nil || cid == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "cooperative_id geçersiz")
	}
	return cid, nil
}

func parseMemberType(s string) (models.MemberType, bool) {
	switch models.MemberType(s) {
	case models.MemberTypeDriver, models.MemberTypeCustomer, models.MemberTypeStaff, models.MemberTypeOther:
		return models.MemberType(s), true
	}
	return "", false
}

func toMemberResponse(m *models.Member) MemberResponse {
	return MemberResponse{
		ID:               m.ID,
		CooperativeID:    m.CooperativeID,
		Name:             m.Name,
		Phone:            m.Phone,
		Type:             string(m.Type),
		OwnershipShares:  m.OwnershipShares,
		InvestmentShares: m.InvestmentShares,
		VotingRights:     m.VotingRights,
		IsActive:         m.IsActive,
		JoinedDate:       m.JoinedDate.Format("2006-01-02"),
	}
}

// -------------------------------------------------
// POST /api/members
// -------------------------------------------------
func CreateMemberHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateMemberRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		coopID, err := resolveCoopIDFromBodyOrRole(c, body.CooperativeID)
		if err != nil {
			return err
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Üye adı boş olamaz")
		}

		mType, ok := parseMemberType(body.Type)
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "type 'driver', 'customer', 'staff' veya 'other' olmalı")
		}

		member := models.Member{
			CooperativeID: coopID,
			Name:          body.Name,
			Phone:         strings.TrimSpace(body.Phone),
			Type:          mType,
			VotingRights:  true,
			IsActive:      true,
			JoinedDate:    time.Now(),
		}

		if body.OwnershipShares != nil {
			if *body.OwnershipShares < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "ownership_shares negatif olamaz")
			}
			member.OwnershipShares = *body.OwnershipShares
		}
		if body.InvestmentShares != nil {
			if *body.InvestmentShares < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "investment_shares negatif olamaz")
			}
			member.InvestmentShares = *body.InvestmentShares
		}
		if body.VotingRights != nil {
			member.VotingRights = *body.VotingRights
		}
		if body.JoinedDate != "" {
			d, err := time.Parse("2006-01-02", body.JoinedDate)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "joined_date 'YYYY-MM-DD' formatında olmalı")
			}
			member.JoinedDate = d
		}

		if err := database.DB.Create(&member).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Üye oluşturulamadı")
		}

		userID, userName, _, _ := getUserInfo(c)
		_ = audit.WriteLog(database.DB, audit.LogOptions{
			CooperativeID: &coopID,
			UserID:        userID,
			UserName:      userName,
			EntityType:    "member",
			EntityID:      member.ID,
			Action:        models.AuditActionCreate,
			Description:   "Üye kaydedildi: " + member.Name,
			After:         member,
		})

		return c.Status(fiber.StatusCreated).JSON(toMemberResponse(&member))
	}
}

// -------------------------------------------------
// GET /api/members?active=true&type=driver
// -------------------------------------------------
func ListMembersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		coopID, err := resolveCoopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		q := database.DB.Where("cooperative_id = ?", coopID)

		if activeStr := c.Query("active"); activeStr != "" {
			switch activeStr {
			case "true":
				q = q.Where("is_active = ?", true)
			case "false":
				q = q.Where("is_active = ?", false)
			default:
				return fiber.NewError(fiber.StatusBadRequest, "active 'true' veya 'false' olmalı")
			}
		}
		if typeStr := c.Query("type"); typeStr != "" {
			mType, ok := parseMemberType(typeStr)
			if !ok {
				return fiber.NewError(fiber.StatusBadRequest, "type geçersiz")
			}
			q = q.Where("type = ?", mType)
		}

		var members []models.Member
		if err := q.Order("name asc").Find(&members).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Üyeler listelenemedi")
		}

		res := make([]MemberResponse, 0, len(members))
		for i := range members {
			res = append(res, toMemberResponse(&members[i]))
		}

		return c.JSON(res)
	}
}

// -------------------------------------------------
// GET /api/members/:id
// -------------------------------------------------
func GetMemberHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		coopID, err := resolveCoopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		var member models.Member
		if err := database.DB.First(&member, "id = ? AND cooperative_id = ?", c.Params("id"), coopID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Üye bulunamadı")
		}

		return c.JSON(toMemberResponse(&member))
	}
}

// -------------------------------------------------
// PUT /api/members/:id
// -------------------------------------------------
func UpdateMemberHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		coopID, err := resolveCoopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		var member models.Member
		if err := database.DB.First(&member, "id = ? AND cooperative_id = ?", c.Params("id"), coopID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Üye bulunamadı")
		}

		var body UpdateMemberRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		before := member

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Üye adı boş olamaz")
			}
			member.Name = name
		}
		if body.Phone != nil {
			member.Phone = strings.TrimSpace(*body.Phone)
		}
		if body.Type != nil {
			mType, ok := parseMemberType(*body.Type)
			if !ok {
				return fiber.NewError(fiber.StatusBadRequest, "type geçersiz")
			}
			member.Type = mType
		}
		if body.OwnershipShares != nil {
			if *body.OwnershipShares < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "ownership_shares negatif olamaz")
			}
			member.OwnershipShares = *body.OwnershipShares
		}
		if body.InvestmentShares != nil {
			if *body.InvestmentShares < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "investment_shares negatif olamaz")
			}
			member.InvestmentShares = *body.InvestmentShares
		}
		if body.VotingRights != nil {
			member.VotingRights = *body.VotingRights
		}

		if err := database.DB.Save(&member).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Üye güncellenemedi")
		}

		userID, userName, _, _ := getUserInfo(c)
		_ = audit.WriteLog(database.DB, audit.LogOptions{
			CooperativeID: &coopID,
			UserID:        userID,
			UserName:      userName,
			EntityType:    "member",
			EntityID:      member.ID,
			Action:        models.AuditActionUpdate,
			Description:   "Üye güncellendi: " + member.Name,
			Before:        before,
			After:         member,
		})

		return c.JSON(toMemberResponse(&member))
	}
}

// -------------------------------------------------
// DELETE /api/members/:id
// Üye kaydı silinmez, pasife alınır. Geçmiş oylama ve dağıtım
// sonuçlarının yeniden üretilebilmesi için kayıt kalıcıdır.
// -------------------------------------------------
func DeactivateMemberHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		coopID, err := resolveCoopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		var member models.Member
		if err := database.DB.First(&member, "id = ? AND cooperative_id = ?", c.Params("id"), coopID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Üye bulunamadı")
		}

		if !member.IsActive {
			return fiber.NewError(fiber.StatusBadRequest, "Üye zaten pasif")
		}

		before := member
		member.IsActive = false

		if err := database.DB.Save(&member).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Üye pasife alınamadı")
		}

		userID, userName, _, _ := getUserInfo(c)
		_ = audit.WriteLog(database.DB, audit.LogOptions{
			CooperativeID: &coopID,
			UserID:        userID,
			UserName:      userName,
			EntityType:    "member",
			EntityID:      member.ID,
			Action:        models.AuditActionDeactivate,
			Description:   "Üye pasife alındı: " + member.Name,
			Before:        before,
			After:         member,
		})

		return c.SendStatus(fiber.StatusNoContent)
	}
}
