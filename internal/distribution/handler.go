package distribution

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"kooperatif-backend/internal/audit"
	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type CreatePeriodRequest struct {
	Type                   string           `json:"type"`         // quarterly | annual | special
	PeriodStart            string           `json:"period_start"` // "2025-01-01"
	PeriodEnd              string           `json:"period_end"`   // "2025-03-31"
	TotalRevenue           *decimal.Decimal `json:"total_revenue"`
	TotalExpenses          *decimal.Decimal `json:"total_expenses"`
	TotalProfit            *decimal.Decimal `json:"total_profit"`
	ReservePercentage      *decimal.Decimal `json:"reserve_percentage"`
	DistributionPercentage *decimal.Decimal `json:"distribution_percentage"`
	// super_admin için opsiyonel:
	CooperativeID *uint `json:"cooperative_id"`
}

type UpdatePeriodRequest struct {
	Type                   *string          `json:"type"`
	PeriodStart            *string          `json:"period_start"`
	PeriodEnd              *string          `json:"period_end"`
	TotalRevenue           *decimal.Decimal `json:"total_revenue"`
	TotalExpenses          *decimal.Decimal `json:"total_expenses"`
	TotalProfit            *decimal.Decimal `json:"total_profit"`
	ReservePercentage      *decimal.Decimal `json:"reserve_percentage"`
	DistributionPercentage *decimal.Decimal `json:"distribution_percentage"`
}

type MarkPaidRequest struct {
	PaymentMethod    string `json:"payment_method"` // "bank_transfer", "cash" vb.
	PaymentReference string `json:"payment_reference"`
}

type PeriodResponse struct {
	ID                     uint    `json:"id"`
	CooperativeID          uint    `json:"cooperative_id"`
	Type                   string  `json:"type"`
	PeriodStart            string  `json:"period_start"`
	PeriodEnd              string  `json:"period_end"`
	TotalRevenue           *string `json:"total_revenue"`
	TotalExpenses          *string `json:"total_expenses"`
	TotalProfit            *string `json:"total_profit"`
	ReservePercentage      string  `json:"reserve_percentage"`
	DistributionPercentage string  `json:"distribution_percentage"`
	DistributionPool       string  `json:"distribution_pool"`
	Status                 string  `json:"status"`
	DistributionCount      int     `json:"distribution_count"`
}

type DistributionResponse struct {
	ID                  uint    `json:"id"`
	PeriodID            uint    `json:"period_id"`
	MemberID            uint    `json:"member_id"`
	MemberName          string  `json:"member_name"`
	Type                string  `json:"type"`
	ShareBasis          int     `json:"share_basis"`
	OwnershipPercentage string  `json:"ownership_percentage"`
	Amount              string  `json:"amount"`
	Paid                bool    `json:"paid"`
	PaymentMethod       string  `json:"payment_method"`
	PaymentReference    string  `json:"payment_reference"`
	PaidDate            *string `json:"paid_date"`
}

type CalculateResponse struct {
	PeriodID             uint   `json:"period_id"`
	DistributionsCreated int    `json:"distributions_created"`
	Pool                 string `json:"pool"`
	Status               string `json:"status"`
}

type PeriodSummaryResponse struct {
	PeriodID         uint   `json:"period_id"`
	Status           string `json:"status"`
	DistributionPool string `json:"distribution_pool"`
	TotalDistributed string `json:"total_distributed"`
	TotalPaid        string `json:"total_paid"`
	RowCount         int    `json:"row_count"`
	PaidCount        int    `json:"paid_count"`
	UnpaidCount      int    `json:"unpaid_count"`
}

// -------------------------
// Yardımcılar
// -------------------------

func getUserInfo(c *fiber.Ctx) (uint, string, error) {
	userIDVal := c.Locals(auth.CtxUserIDKey)
	userID, ok := userIDVal.(uint)
	if !ok {
		return 0, "", fiber.NewError(fiber.StatusForbidden, "Kullanıcı bilgisi alınamadı")
	}

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		return 0, "", fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı bulunamadı")
	}

	return userID, user.Name, nil
}

func resolveCoopIDFromBodyOrRole(c *fiber.Ctx, bodyCoopID *uint) (uint, error) {
	roleVal := c.Locals(auth.CtxUserRoleKey)
	role, ok := roleVal.(models.UserRole)
	if !ok {
		return 0, fiber.NewError(fiber.StatusForbidden, "Rol bilgisi alınamadı")
	}

	if role != models.RoleSuperAdmin {
		cPtr, ok := c.Locals(auth.CtxCooperativeIDKey).(*uint)
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

func resolveCoopIDFromQueryOrRole(c *fiber.Ctx) (uint, error) {
	roleVal := c.Locals(auth.CtxUserRoleKey)
	role, ok := roleVal.(models.UserRole)
	if !ok {
		return 0, fiber.NewError(fiber.StatusForbidden, "Rol bilgisi alınamadı")
	}

	if role != models.RoleSuperAdmin {
		cPtr, ok := c.Locals(auth.CtxCooperativeIDKey).(*uint)
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

func parsePeriodType(s string) (models.PeriodType, bool) {
	switch models.PeriodType(s) {
	case models.PeriodTypeQuarterly, models.PeriodTypeAnnual, models.PeriodTypeSpecial:
		return models.PeriodType(s), true
	}
	return "", false
}

func validPercent(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(decimal.NewFromInt(100))
}

func nullDecStr(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.StringFixed(2)
	return &s
}

func toPeriodResponse(p *models.DistributionPeriod) PeriodResponse {
	return PeriodResponse{
		ID:                     p.ID,
		CooperativeID:          p.CooperativeID,
		Type:                   string(p.Type),
		PeriodStart:            p.PeriodStart.Format("2006-01-02"),
		PeriodEnd:              p.PeriodEnd.Format("2006-01-02"),
		TotalRevenue:           nullDecStr(p.TotalRevenue),
		TotalExpenses:          nullDecStr(p.TotalExpenses),
		TotalProfit:            nullDecStr(p.TotalProfit),
		ReservePercentage:      p.ReservePercentage.StringFixed(2),
		DistributionPercentage: p.DistributionPercentage.StringFixed(2),
		DistributionPool:       p.DistributionPool().StringFixed(2),
		Status:                 string(p.Status),
		DistributionCount:      p.DistributionCount,
	}
}

func domainError(err error) error {
	switch {
	case errors.Is(err, models.ErrInvalidState):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, models.ErrIncompleteFinancials):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, models.ErrAlreadyPaid):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "İşlem tamamlanamadı")
	}
}

func loadPeriod(c *fiber.Ctx) (*models.DistributionPeriod, uint, error) {
	coopID, err := resolveCoopIDFromQueryOrRole(c)
	if err != nil {
		return nil, 0, err
	}

	var period models.DistributionPeriod
	if err := database.DB.First(&period, "id = ? AND cooperative_id = ?", c.Params("id"), coopID).Error; err != nil {
		return nil, 0, fiber.NewError(fiber.StatusNotFound, "Dönem bulunamadı")
	}
	return &period, coopID, nil
}

// -------------------------------------------------
// POST /api/distribution-periods
// -------------------------------------------------
func CreatePeriodHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreatePeriodRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		coopID, err := resolveCoopIDFromBodyOrRole(c, body.CooperativeID)
		if err != nil {
			return err
		}

		pType, ok := parsePeriodType(body.Type)
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "type 'quarterly', 'annual' veya 'special' olmalı")
		}

		start, err := time.Parse("2006-01-02", body.PeriodStart)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "period_start 'YYYY-MM-DD' formatında olmalı")
		}
		end, err := time.Parse("2006-01-02", body.PeriodEnd)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "period_end 'YYYY-MM-DD' formatında olmalı")
		}
		if end.Before(start) {
			return fiber.NewError(fiber.StatusBadRequest, "period_end period_start'tan önce olamaz")
		}

		period := models.DistributionPeriod{
			CooperativeID: coopID,
			Type:          pType,
			PeriodStart:   start,
			PeriodEnd:     end,
			Status:        models.PeriodStatusDraft,
		}

		if body.TotalRevenue != nil {
			period.TotalRevenue = decimal.NewNullDecimal(*body.TotalRevenue)
		}
		if body.TotalExpenses != nil {
			period.TotalExpenses = decimal.NewNullDecimal(*body.TotalExpenses)
		}
		if body.TotalProfit != nil {
			period.TotalProfit = decimal.NewNullDecimal(*body.TotalProfit)
		}
		// Rezerv ve dağıtım yüzdeleri bağımsız iki ayar; toplamlarının
		// 100 etmesi istenmez
		if body.ReservePercentage != nil {
			if !validPercent(*body.ReservePercentage) {
				return fiber.NewError(fiber.StatusBadRequest, "reserve_percentage 0-100 arası olmalı")
			}
			period.ReservePercentage = *body.ReservePercentage
		}
		if body.DistributionPercentage != nil {
			if !validPercent(*body.DistributionPercentage) {
				return fiber.NewError(fiber.StatusBadRequest, "distribution_percentage 0-100 arası olmalı")
			}
			period.DistributionPercentage = *body.DistributionPercentage
		}

		if err := database.DB.Create(&period).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Dönem oluşturulamadı")
		}

		userID, userName, _ := getUserInfo(c)
		_ = audit.WriteLog(database.DB, audit.LogOptions{
			CooperativeID: &coopID,
			UserID:        userID,
			UserName:      userName,
			EntityType:    "distribution_period",
			EntityID:      period.ID,
			Action:        models.AuditActionCreate,
			Description:   fmt.Sprintf("Dağıtım dönemi oluşturuldu: %s - %s", body.PeriodStart, body.PeriodEnd),
			After:         period,
		})

		return c.Status(fiber.StatusCreated).JSON(toPeriodResponse(&period))
	}
}

// -------------------------------------------------
// GET /api/distribution-periods?status=calculated
// -------------------------------------------------
func ListPeriodsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		coopID, err := resolveCoopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		q := database.DB.Where("cooperative_id = ?", coopID)
		if st := c.Query("status"); st != "" {
			q = q.Where("status = ?", st)
		}

		var periods []models.DistributionPeriod
		if err := q.Order("period_start DESC").Find(&periods).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Dönemler listelenemedi")
		}

		res := make([]PeriodResponse, 0, len(periods))
		for i := range periods {
			res = append(res, toPeriodResponse(&periods[i]))
		}
		return c.JSON(res)
	}
}

// -------------------------------------------------
// GET /api/distribution-periods/:id
// -------------------------------------------------
func GetPeriodHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		period, _, err := loadPeriod(c)
		if err != nil {
			return err
		}
		return c.JSON(toPeriodResponse(period))
	}
}

// -------------------------------------------------
// PUT /api/distribution-periods/:id
// Finansal girdiler draft ve calculated durumunda güncellenebilir
// (güncelleme sonrası yeniden hesaplama gerekir); onaydan sonra kapalıdır.
// -------------------------------------------------
func UpdatePeriodHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		period, coopID, err := loadPeriod(c)
		if err != nil {
			return err
		}

		if period.Status != models.PeriodStatusDraft && period.Status != models.PeriodStatusCalculated {
			return fiber.NewError(fiber.StatusConflict, "Onaylanmış dönem düzenlenemez")
		}

		var body UpdatePeriodRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		before := *period

		if body.Type != nil {
			pType, ok := parsePeriodType(*body.Type)
			if !ok {
				return fiber.NewError(fiber.StatusBadRequest, "type geçersiz")
			}
			period.Type = pType
		}
		if body.PeriodStart != nil {
			start, err := time.Parse("2006-01-02", *body.PeriodStart)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "period_start 'YYYY-MM-DD' formatında olmalı")
			}
			period.PeriodStart = start
		}
		if body.PeriodEnd != nil {
			end, err := time.Parse("2006-01-02", *body.PeriodEnd)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "period_end 'YYYY-MM-DD' formatında olmalı")
			}
			period.PeriodEnd = end
		}
		if period.PeriodEnd.Before(period.PeriodStart) {
			return fiber.NewError(fiber.StatusBadRequest, "period_end period_start'tan önce olamaz")
		}
		if body.TotalRevenue != nil {
			period.TotalRevenue = decimal.NewNullDecimal(*body.TotalRevenue)
		}
		if body.TotalExpenses != nil {
			period.TotalExpenses = decimal.NewNullDecimal(*body.TotalExpenses)
		}
		if body.TotalProfit != nil {
			period.TotalProfit = decimal.NewNullDecimal(*body.TotalProfit)
		}
		if body.ReservePercentage != nil {
			if !validPercent(*body.ReservePercentage) {
				return fiber.NewError(fiber.StatusBadRequest, "reserve_percentage 0-100 arası olmalı")
			}
			period.ReservePercentage = *body.ReservePercentage
		}
		if body.DistributionPercentage != nil {
			if !validPercent(*body.DistributionPercentage) {
				return fiber.NewError(fiber.StatusBadRequest, "distribution_percentage 0-100 arası olmalı")
			}
			period.DistributionPercentage = *body.DistributionPercentage
		}

		if err := database.DB.Save(period).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Dönem güncellenemedi")
		}

		userID, userName, _ := getUserInfo(c)
		_ = audit.WriteLog(database.DB, audit.LogOptions{
			CooperativeID: &coopID,
			UserID:        userID,
			UserName:      userName,
			EntityType:    "distribution_period",
			EntityID:      period.ID,
			Action:        models.AuditActionUpdate,
			Description:   "Dönem güncellendi",
			Before:        before,
			After:         period,
		})

		return c.JSON(toPeriodResponse(period))
	}
}

// -------------------------------------------------
// POST /api/distribution-periods/:id/calculate
// -------------------------------------------------
func CalculateHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		period, coopID, err := loadPeriod(c)
		if err != nil {
			return err
		}

		var coop models.Cooperative
		if err := database.DB.First(&coop, "id = ?", coopID).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kooperatif okunamadı")
		}

		count, pool, err := Calculate(database.DB, period, coop.DistributionPolicy)
		if err != nil {
			return domainError(err)
		}

		userID, userName, _ := getUserInfo(c)
		_ = audit.WriteLog(database.DB, audit.LogOptions{
			CooperativeID: &coopID,
			UserID:        userID,
			UserName:      userName,
			EntityType:    "distribution_period",
			EntityID:      period.ID,
			Action:        models.AuditActionCalculate,
			Description:   fmt.Sprintf("Dağıtım hesaplandı: %d satır, havuz %s", count, pool.StringFixed(2)),
		})

		return c.JSON(CalculateResponse{
			PeriodID:             period.ID,
			DistributionsCreated: count,
			Pool:                 pool.StringFixed(2),
			Status:               string(period.Status),
		})
	}
}

// -------------------------------------------------
// POST /api/distribution-periods/:id/approve
// -------------------------------------------------
func ApprovePeriodHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		period, coopID, err := loadPeriod(c)
		if err != nil {
			return err
		}

		if err := Approve(database.DB, period); err != nil {
			return domainError(err)
		}

		userID, userName, _ := getUserInfo(c)
		_ = audit.WriteLog(database.DB, audit.LogOptions{
			CooperativeID: &coopID,
			UserID:        userID,
			UserName:      userName,
			EntityType:    "distribution_period",
			EntityID:      period.ID,
			Action:        models.AuditActionTransition,
			Description:   "Dönem onaylandı, dağıtım seti kilitlendi",
		})

		return c.JSON(toPeriodResponse(period))
	}
}

// -------------------------------------------------
// POST /api/distribution-periods/:id/cancel
// -------------------------------------------------
func CancelPeriodHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		period, coopID, err := loadPeriod(c)
		if err != nil {
			return err
		}

		if err := Cancel(database.DB, period); err != nil {
			return domainError(err)
		}

		userID, userName, _ := getUserInfo(c)
		_ = audit.WriteLog(database.DB, audit.LogOptions{
			CooperativeID: &coopID,
			UserID:        userID,
			UserName:      userName,
			EntityType:    "distribution_period",
			EntityID:      period.ID,
			Action:        models.AuditActionTransition,
			Description:   "Dönem iptal edildi",
		})

		return c.JSON(toPeriodResponse(period))
	}
}

// -------------------------------------------------
// GET /api/distribution-periods/:id/distributions
// -------------------------------------------------
func ListDistributionsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		period, _, err := loadPeriod(c)
		if err != nil {
			return err
		}

		var dists []models.MemberDistribution
		if err := database.DB.Preload("Member").
			Where("period_id = ?", period.ID).
			Order("member_id asc").
			Find(&dists).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Dağıtımlar listelenemedi")
		}

		res := make([]DistributionResponse, 0, len(dists))
		for _, d := range dists {
			item := DistributionResponse{
				ID:                  d.ID,
				PeriodID:            d.PeriodID,
				MemberID:            d.MemberID,
				MemberName:          d.Member.Name,
				Type:                string(d.Type),
				ShareBasis:          d.ShareBasis,
				OwnershipPercentage: d.OwnershipPercentage.StringFixed(2),
				Amount:              d.Amount.StringFixed(2),
				Paid:                d.Paid,
				PaymentMethod:       d.PaymentMethod,
				PaymentReference:    d.PaymentReference,
			}
			if d.PaidDate != nil {
				s := d.PaidDate.Format(time.RFC3339)
				item.PaidDate = &s
			}
			res = append(res, item)
		}
		return c.JSON(res)
	}
}

// -------------------------------------------------
// POST /api/distributions/:id/pay
// -------------------------------------------------
func MarkPaidHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		coopID, err := resolveCoopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		var dist models.MemberDistribution
		if err := database.DB.First(&dist, "id = ? AND cooperative_id = ?", c.Params("id"), coopID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Dağıtım bulunamadı")
		}

		var body MarkPaidRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		method := strings.TrimSpace(body.PaymentMethod)
		if method == "" {
			return fiber.NewError(fiber.StatusBadRequest, "payment_method zorunlu")
		}

		if err := MarkPaid(database.DB, &dist, method, strings.TrimSpace(body.PaymentReference), time.Now()); err != nil {
			return domainError(err)
		}

		userID, userName, _ := getUserInfo(c)
		_ = audit.WriteLog(database.DB, audit.LogOptions{
			CooperativeID: &coopID,
			UserID:        userID,
			UserName:      userName,
			EntityType:    "member_distribution",
			EntityID:      dist.ID,
			Action:        models.AuditActionPayment,
			Description:   fmt.Sprintf("Ödeme işlendi: %s (%s)", dist.Amount.StringFixed(2), method),
		})

		item := DistributionResponse{
			ID:                  dist.ID,
			PeriodID:            dist.PeriodID,
			MemberID:            dist.MemberID,
			Type:                string(dist.Type),
			ShareBasis:          dist.ShareBasis,
			OwnershipPercentage: dist.OwnershipPercentage.StringFixed(2),
			Amount:              dist.Amount.StringFixed(2),
			Paid:                dist.Paid,
			PaymentMethod:       dist.PaymentMethod,
			PaymentReference:    dist.PaymentReference,
		}
		if dist.PaidDate != nil {
			s := dist.PaidDate.Format(time.RFC3339)
			item.PaidDate = &s
		}
		return c.JSON(item)
	}
}

// -------------------------------------------------
// GET /api/distribution-periods/:id/summary
// -------------------------------------------------
func PeriodSummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		period, _, err := loadPeriod(c)
		if err != nil {
			return err
		}

		var dists []models.MemberDistribution
		if err := database.DB.Where("period_id = ?", period.ID).Find(&dists).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Dağıtımlar okunamadı")
		}

		totalDistributed := decimal.Zero
		totalPaid := decimal.Zero
		paidCount := 0
		for _, d := range dists {
			totalDistributed = totalDistributed.Add(d.Amount)
			if d.Paid {
				totalPaid = totalPaid.Add(d.Amount)
				paidCount++
			}
		}

		return c.JSON(PeriodSummaryResponse{
			PeriodID:         period.ID,
			Status:           string(period.Status),
			DistributionPool: period.DistributionPool().StringFixed(2),
			TotalDistributed: totalDistributed.StringFixed(2),
			TotalPaid:        totalPaid.StringFixed(2),
			RowCount:         len(dists),
			PaidCount:        paidCount,
			UnpaidCount:      len(dists) - paidCount,
		})
	}
}
