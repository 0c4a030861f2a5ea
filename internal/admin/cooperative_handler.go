package admin

import (
	"strings"

	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type CooperativeResponse struct {
	ID                 uint   `json:"id"`
	Name               string `json:"name"`
	Address            string `json:"address"`
	Phone              string `json:"phone"`
	DistributionPolicy string `json:"distribution_policy"`
	CreatedAt          string `json:"created_at"`
}

type CreateCooperativeRequest struct {
	Name               string  `json:"name"`
	Address            string  `json:"address"`
	Phone              *string `json:"phone"` // Opsiyonel
	DistributionPolicy *string `json:"distribution_policy"`
}

type UpdateCooperativeRequest struct {
	Name               *string `json:"name"`
	Address            *string `json:"address"`
	Phone              *string `json:"phone"`
	DistributionPolicy *string `json:"distribution_policy"`
}

type CreateCoopAdminRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func toCooperativeResponse(coop *models.Cooperative) CooperativeResponse {
	return CooperativeResponse{
		ID:                 coop.ID,
		Name:               coop.Name,
		Address:            coop.Address,
		Phone:              coop.Phone,
		DistributionPolicy: string(coop.DistributionPolicy),
		CreatedAt:          coop.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func parsePolicy(s string) (models.DistributionPolicy, bool) {
	switch models.DistributionPolicy(s) {
	case models.PolicyMemberType, models.PolicySharesOnly:
		return models.DistributionPolicy(s), true
	}
	return "", false
}

// ----------------------------------------
// KOOPERATİF CRUD
// ----------------------------------------

func CreateCooperativeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateCooperativeRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri gönderildi")
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Kooperatif adı boş olamaz")
		}

		coop := models.Cooperative{
			Name:               body.Name,
			Address:            body.Address,
			DistributionPolicy: models.PolicyMemberType,
		}
		if body.Phone != nil {
			coop.Phone = strings.TrimSpace(*body.Phone)
		}
		if body.DistributionPolicy != nil {
			policy, ok := parsePolicy(*body.DistributionPolicy)
			if !ok {
				return fiber.NewError(fiber.StatusBadRequest, "distribution_policy 'member_type' veya 'shares_only' olmalı")
			}
			coop.DistributionPolicy = policy
		}

		if err := database.DB.Create(&coop).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kooperatif oluşturulamadı")
		}

		return c.Status(fiber.StatusCreated).JSON(toCooperativeResponse(&coop))
	}
}

func ListCooperativesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {

		var coops []models.Cooperative
		if err := database.DB.Find(&coops).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kooperatifler listelenemedi")
		}

		res := make([]CooperativeResponse, 0, len(coops))
		for i := range coops {
			res = append(res, toCooperativeResponse(&coops[i]))
		}

		return c.JSON(res)
	}
}

func GetCooperativeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var coop models.Cooperative
		if err := database.DB.First(&coop, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Kooperatif bulunamadı")
		}

		return c.JSON(toCooperativeResponse(&coop))
	}
}

func UpdateCooperativeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var coop models.Cooperative
		if err := database.DB.First(&coop, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Kooperatif bulunamadı")
		}

		var body UpdateCooperativeRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri gönderildi")
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Kooperatif adı boş olamaz")
			}
			coop.Name = name
		}

		if body.Address != nil {
			coop.Address = *body.Address
		}

		if body.Phone != nil {
			coop.Phone = strings.TrimSpace(*body.Phone)
		}

		if body.DistributionPolicy != nil {
			policy, ok := parsePolicy(*body.DistributionPolicy)
			if !ok {
				return fiber.NewError(fiber.StatusBadRequest, "distribution_policy 'member_type' veya 'shares_only' olmalı")
			}
			coop.DistributionPolicy = policy
		}

		if err := database.DB.Save(&coop).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kooperatif güncellenemedi")
		}

		return c.JSON(toCooperativeResponse(&coop))
	}
}

// ----------------------------------------
// KOOPERATİF ADMİNİ OLUŞTURMA
// ----------------------------------------

func CreateCoopAdminHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {

		coopID := c.Params("id")

		// Kooperatif kontrolü
		var coop models.Cooperative
		if err := database.DB.First(&coop, "id = ?", coopID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Kooperatif bulunamadı")
		}

		var body CreateCoopAdminRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri gönderildi")
		}

		body.Email = strings.ToLower(strings.TrimSpace(body.Email))
		body.Name = strings.TrimSpace(body.Name)

		if body.Name == "" || body.Email == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "İsim, email ve şifre zorunlu")
		}

		// Email kontrolü
		var exist models.User
		if err := database.DB.Where("email = ?", body.Email).First(&exist).Error; err == nil {
			return fiber.NewError(fiber.StatusBadRequest, "Bu email zaten kayıtlı")
		}

		hash, _ := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)

		user := models.User{
			Name:          body.Name,
			Email:         body.Email,
			PasswordHash:  string(hash),
			Role:          models.RoleCoopAdmin,
			CooperativeID: &coop.ID,
		}

		if err := database.DB.Create(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kooperatif admini oluşturulamadı")
		}

		// NOT: Şifre sadece oluşturma sırasında bir kez döndürülür (güvenlik)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":             user.ID,
			"name":           user.Name,
			"email":          user.Email,
			"role":           user.Role,
			"cooperative_id": user.CooperativeID,
			"password":       body.Password, // Sadece oluşturma sırasında (bir kez)
		})
	}
}

func ListCoopAdminsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		coopID := c.Params("id")

		var users []models.User
		if err := database.DB.
			Where("cooperative_id = ? AND role = ?", coopID, models.RoleCoopAdmin).
			Order("created_at DESC").
			Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Adminler listelenemedi")
		}

		res := make([]fiber.Map, 0, len(users))
		for _, u := range users {
			res = append(res, fiber.Map{
				"id":         u.ID,
				"name":       u.Name,
				"email":      u.Email,
				"role":       u.Role,
				"created_at": u.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}

		return c.JSON(res)
	}
}
