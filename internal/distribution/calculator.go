package distribution

import (
	"fmt"
	"time"

	"kooperatif-backend/internal/membership"
	"kooperatif-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// recipient: hesaba giren bir üye ve kullanılacak pay tabanı
type recipient struct {
	member *models.Member
	dType  models.DistributionType
	basis  int
}

// selectRecipients: kooperatif politikasına göre dağıtım alacak üyeleri seçer.
//
//	member_type: şoför/personel ortaklık payı üzerinden kâr payı,
//	             müşteri/diğer yatırım payı üzerinden temettü alır.
//	shares_only: ortaklık payı olan herkes kâr payı alır.
//
// Pasif üyeler ve tabanı sıfır olanlar hiçbir politikada listeye girmez.
func selectRecipients(members []models.Member, policy models.DistributionPolicy) []recipient {
	var out []recipient
	for i := range members {
		m := &members[i]
		switch policy {
		case models.PolicySharesOnly:
			if m.OwnershipShares > 0 {
				out = append(out, recipient{member: m, dType: models.DistributionTypeProfitShare, basis: m.OwnershipShares})
			}
		default: // member_type
			switch m.Type {
			case models.MemberTypeDriver, models.MemberTypeStaff:
				if m.OwnershipShares > 0 {
					out = append(out, recipient{member: m, dType: models.DistributionTypeProfitShare, basis: m.OwnershipShares})
				}
			default:
				if m.InvestmentShares > 0 {
					out = append(out, recipient{member: m, dType: models.DistributionTypeDividend, basis: m.InvestmentShares})
				}
			}
		}
	}
	return out
}

// Calculate: dönemin üye dağıtımlarını hesaplar.
//
// Dönem draft veya calculated durumunda olmalıdır; onaydan önce yeniden
// hesaplama serbesttir ve yıkıcı-değiştirmedir: önceki satırlar silinir,
// yenileri yazılır, ikisi tek transaction içinde olur. Aynı girdiyle iki
// kez çağırmak aynı satır setini üretir.
//
// Yuvarlama kuralı: ara yüzdeler tam hassasiyetle taşınır; sadece nihai
// tutar 2 haneye yuvarlanır (half away from zero). Böylece satır
// toplamı havuzu en çok üye_sayısı × 0.01 aşabilir.
func Calculate(db *gorm.DB, period *models.DistributionPeriod, policy models.DistributionPolicy) (int, decimal.Decimal, error) {
	if period.Status != models.PeriodStatusDraft && period.Status != models.PeriodStatusCalculated {
		return 0, decimal.Zero, fmt.Errorf("%w: dönem %s durumunda, hesaplanamaz", models.ErrInvalidState, period.Status)
	}
	if !period.TotalProfit.Valid {
		return 0, decimal.Zero, fmt.Errorf("%w: total_profit girilmemiş", models.ErrIncompleteFinancials)
	}

	pool := period.DistributionPool()

	members, err := membership.ListActiveMembers(db, period.CooperativeID)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("üyeler listelenemedi: %w", err)
	}

	recipients := selectRecipients(members, policy)

	totalShares := 0
	for _, r := range recipients {
		totalShares += r.basis
	}

	rows := make([]models.MemberDistribution, 0, len(recipients))
	if totalShares > 0 {
		totalDec := decimal.NewFromInt(int64(totalShares))
		for _, r := range recipients {
			// Yüzde tam hassasiyette, tutar son adımda yuvarlanır
			pct := decimal.NewFromInt(int64(r.basis)).Mul(hundred).Div(totalDec)
			amount := pool.Mul(pct).Div(hundred).Round(2)

			rows = append(rows, models.MemberDistribution{
				CooperativeID:       period.CooperativeID,
				PeriodID:            period.ID,
				MemberID:            r.member.ID,
				Type:                r.dType,
				ShareBasis:          r.basis,
				OwnershipPercentage: pct.Round(4),
				Amount:              amount,
			})
		}
	}
	// totalShares == 0: taban yok, satır üretilmez; havuz dağıtılmadan
	// kalır ama dönem yine calculated'a geçer (hata değil, dejenere sonuç)

	err = db.Transaction(func(tx *gorm.DB) error {
		// Yıkıcı-değiştir: önce eski set atomik olarak gider
		if err := tx.Where("period_id = ?", period.ID).Delete(&models.MemberDistribution{}).Error; err != nil {
			return fmt.Errorf("önceki dağıtımlar silinemedi: %w", err)
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("dağıtımlar yazılamadı: %w", err)
			}
		}

		res := tx.Model(&models.DistributionPeriod{}).
			Where("id = ? AND status IN ?", period.ID,
				[]models.PeriodStatus{models.PeriodStatusDraft, models.PeriodStatusCalculated}).
			Updates(map[string]interface{}{
				"status":             models.PeriodStatusCalculated,
				"distribution_count": len(rows),
			})
		if res.Error != nil {
			return fmt.Errorf("dönem güncellenemedi: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: dönem bu sırada başka bir işlemle değişti", models.ErrInvalidState)
		}
		return nil
	})
	if err != nil {
		// Transaction geri alındı; dönem hesap öncesi durumunda kalır
		return 0, decimal.Zero, err
	}

	period.Status = models.PeriodStatusCalculated
	period.DistributionCount = len(rows)
	return len(rows), pool, nil
}

// Approve: dağıtım setini kilitler. calculated → approved geçişi durum
// üzerinde compare-and-set ile yapılır; eşzamanlı ikinci onay veya onayla
// yarışan bir yeniden hesaplama InvalidState alır.
func Approve(db *gorm.DB, period *models.DistributionPeriod) error {
	if period.Status != models.PeriodStatusCalculated {
		return fmt.Errorf("%w: sadece calculated dönem onaylanabilir (durum: %s)", models.ErrInvalidState, period.Status)
	}

	res := db.Model(&models.DistributionPeriod{}).
		Where("id = ? AND status = ?", period.ID, models.PeriodStatusCalculated).
		Update("status", models.PeriodStatusApproved)
	if res.Error != nil {
		return fmt.Errorf("dönem onaylanamadı: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: dönem bu sırada başka bir işlemle değişti", models.ErrInvalidState)
	}

	period.Status = models.PeriodStatusApproved
	return nil
}

// Cancel: draft veya calculated dönem iptal edilebilir; onaylanmış set
// artık muhasebe kaydıdır, iptal edilemez.
func Cancel(db *gorm.DB, period *models.DistributionPeriod) error {
	if period.Status != models.PeriodStatusDraft && period.Status != models.PeriodStatusCalculated {
		return fmt.Errorf("%w: dönem %s durumunda, iptal edilemez", models.ErrInvalidState, period.Status)
	}

	res := db.Model(&models.DistributionPeriod{}).
		Where("id = ? AND status IN ?", period.ID,
			[]models.PeriodStatus{models.PeriodStatusDraft, models.PeriodStatusCalculated}).
		Update("status", models.PeriodStatusCancelled)
	if res.Error != nil {
		return fmt.Errorf("dönem iptal edilemedi: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: dönem bu sırada başka bir işlemle değişti", models.ErrInvalidState)
	}

	period.Status = models.PeriodStatusCancelled
	return nil
}

// MarkPaid: tek bir dağıtım satırını ödenmiş işaretler. Satır bazında
// paid üzerinde compare-and-set yapılır: aynı satıra ikinci ödeme
// AlreadyPaid ile reddedilir (çift kayıt hatasını sessizce yutmak yerine
// yüzeye çıkarmak tercih edildi). Farklı satırlar birbirinden bağımsızdır.
//
// Dönemin son satırı da ödendiğinde dönem distributed durumuna geçer.
func MarkPaid(db *gorm.DB, dist *models.MemberDistribution, method, reference string, now time.Time) error {
	var period models.DistributionPeriod
	if err := db.First(&period, "id = ?", dist.PeriodID).Error; err != nil {
		return fmt.Errorf("dönem okunamadı: %w", err)
	}
	if period.Status != models.PeriodStatusApproved && period.Status != models.PeriodStatusDistributed {
		return fmt.Errorf("%w: dönem onaylanmadan ödeme işlenemez (durum: %s)", models.ErrInvalidState, period.Status)
	}
	if dist.Paid {
		return fmt.Errorf("%w: dağıtım %d", models.ErrAlreadyPaid, dist.ID)
	}

	if reference == "" {
		reference = uuid.NewString()
	}

	res := db.Model(&models.MemberDistribution{}).
		Where("id = ? AND paid = ?", dist.ID, false).
		Updates(map[string]interface{}{
			"paid":              true,
			"payment_method":    method,
			"payment_reference": reference,
			"paid_date":         now,
		})
	if res.Error != nil {
		return fmt.Errorf("ödeme kaydedilemedi: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: dağıtım %d", models.ErrAlreadyPaid, dist.ID)
	}

	dist.Paid = true
	dist.PaymentMethod = method
	dist.PaymentReference = reference
	dist.PaidDate = &now

	// Ödenmemiş satır kalmadıysa dönem dağıtıldı sayılır
	var unpaid int64
	if err := db.Model(&models.MemberDistribution{}).
		Where("period_id = ? AND paid = ?", dist.PeriodID, false).
		Count(&unpaid).Error; err != nil {
		return fmt.Errorf("ödenmemiş satırlar sayılamadı: %w", err)
	}
	if unpaid == 0 {
		db.Model(&models.DistributionPeriod{}).
			Where("id = ? AND status = ?", dist.PeriodID, models.PeriodStatusApproved).
			Update("status", models.PeriodStatusDistributed)
	}

	return nil
}
