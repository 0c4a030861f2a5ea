package main

import (
	"log"
	"strings"

	"kooperatif-backend/internal/admin"
	"kooperatif-backend/internal/audit"
	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/config"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/distribution"
	"kooperatif-backend/internal/governance"
	"kooperatif-backend/internal/membership"
	"kooperatif-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	cfg := config.Load()
	database.Init(cfg)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			log.Println("Unexpected error:", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Beklenmeyen sunucu hatası",
			})
		},
	})

	// CORS origins'i virgülle ayrılmış string'den array'e çevir
	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-super-admin", auth.RegisterSuperAdminHandler(cfg))
	api.Post("/auth/login", auth.LoginHandler(cfg))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler())

	// Super admin routes
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleSuperAdmin))

	// Kooperatif (tenant) yönetimi
	adminRoutes.Post("/cooperatives", admin.CreateCooperativeHandler())
	adminRoutes.Get("/cooperatives", admin.ListCooperativesHandler())
	adminRoutes.Get("/cooperatives/:id", admin.GetCooperativeHandler())
	adminRoutes.Put("/cooperatives/:id", admin.UpdateCooperativeHandler())
	adminRoutes.Post("/cooperatives/:id/admin", admin.CreateCoopAdminHandler())
	adminRoutes.Get("/cooperatives/:id/admins", admin.ListCoopAdminsHandler())

	// Yönetici (super_admin + coop_admin) route'ları
	manage := protected.Group("")
	manage.Use(auth.RequireRole(models.RoleSuperAdmin, models.RoleCoopAdmin))

	// Üye sicili
	manage.Post("/members", membership.CreateMemberHandler())
	manage.Put("/members/:id", membership.UpdateMemberHandler())
	manage.Delete("/members/:id", membership.DeactivateMemberHandler())

	// Öneri yaşam döngüsü
	manage.Post("/proposals", governance.CreateProposalHandler())
	manage.Put("/proposals/:id", governance.UpdateProposalHandler())
	manage.Post("/proposals/:id/transition", governance.TransitionProposalHandler())

	// Dağıtım dönemleri
	manage.Post("/distribution-periods", distribution.CreatePeriodHandler())
	manage.Put("/distribution-periods/:id", distribution.UpdatePeriodHandler())
	manage.Post("/distribution-periods/:id/calculate", distribution.CalculateHandler())
	manage.Post("/distribution-periods/:id/approve", distribution.ApprovePeriodHandler())
	manage.Post("/distribution-periods/:id/cancel", distribution.CancelPeriodHandler())
	manage.Post("/distributions/:id/pay", distribution.MarkPaidHandler())

	// Ortak (auth gerektiren) route'lar

	// Üye listesi
	protected.Get("/members", membership.ListMembersHandler())
	protected.Get("/members/:id", membership.GetMemberHandler())

	// Öneriler ve oylama
	protected.Get("/proposals", governance.ListProposalsHandler())
	protected.Get("/proposals/:id", governance.GetProposalHandler())
	protected.Post("/proposals/:id/votes", governance.CastVoteHandler())
	protected.Get("/proposals/:id/votes", governance.ListVotesHandler())
	protected.Get("/proposals/:id/result", governance.ResolveProposalHandler())

	// Dağıtım görünümleri
	protected.Get("/distribution-periods", distribution.ListPeriodsHandler())
	protected.Get("/distribution-periods/:id", distribution.GetPeriodHandler())
	protected.Get("/distribution-periods/:id/distributions", distribution.ListDistributionsHandler())
	protected.Get("/distribution-periods/:id/summary", distribution.PeriodSummaryHandler())

	// Audit logs
	protected.Get("/audit-logs", audit.ListAuditLogsHandler())

	log.Println("Server çalışıyor port:", cfg.HTTPPort)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal(err)
	}
}
