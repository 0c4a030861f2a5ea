package membership

import (
	"kooperatif-backend/internal/models"

	"gorm.io/gorm"
)

// Üye sicili: oylama ve dağıtım hesaplarının salt-okunur girdisi.
// db parametresi istek DB'si, transaction veya test DB'si olabilir;
// tüm sorgular kooperatif bazlıdır.

// ListEligibleVoters: aktif ve oy haklı üyeler. Oy yeter sayısı bu
// listenin çözümleme anındaki haline göre hesaplanır.
func ListEligibleVoters(db *gorm.DB, coopID uint) ([]models.Member, error) {
	var members []models.Member
	err := db.
		Where("cooperative_id = ? AND is_active = ? AND voting_rights = ?", coopID, true, true).
		Order("id asc").
		Find(&members).Error
	return members, err
}

func CountEligibleVoters(db *gorm.DB, coopID uint) (int, error) {
	var count int64
	err := db.Model(&models.Member{}).
		Where("cooperative_id = ? AND is_active = ? AND voting_rights = ?", coopID, true, true).
		Count(&count).Error
	return int(count), err
}

// ListActiveMembers: dağıtım hesabının taban listesi. Pasif üyeler
// pay toplamlarına hiçbir zaman dahil edilmez.
func ListActiveMembers(db *gorm.DB, coopID uint) ([]models.Member, error) {
	var members []models.Member
	err := db.
		Where("cooperative_id = ? AND is_active = ?", coopID, true).
		Order("id asc").
		Find(&members).Error
	return members, err
}

// IsEligibleVoter: oy kullanma ön koşulu (aktif + oy hakkı)
func IsEligibleVoter(m *models.Member) bool {
	return m.IsActive && m.VotingRights
}
