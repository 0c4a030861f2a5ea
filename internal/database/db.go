package database

import (
	"log"

	"kooperatif-backend/internal/config"
	"kooperatif-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init(cfg *config.Config) {
	var err error

	DB, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Veritabanına bağlanılamadı: %v", err)
	}

	if err := Migrate(DB); err != nil {
		log.Fatalf("AutoMigrate hatası: %v", err)
	}

	log.Println("Veritabanı bağlantısı başarılı. Migration tamamlandı.")
}

// Migrate: şemayı kurar. Testler aynı model setini in-memory sqlite
// üzerinde kurmak için de bunu çağırır.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Cooperative{},
		&models.User{},
		&models.Member{},
		&models.Proposal{},
		&models.Vote{},
		&models.ProposalResult{},
		&models.DistributionPeriod{},
		&models.MemberDistribution{},
		&models.AuditLog{},
	)
}
