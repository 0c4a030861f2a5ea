package distribution

import (
	"testing"
	"time"

	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// In-memory sqlite tek bağlantıda kalmalı
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func seedCooperative(t *testing.T, db *gorm.DB, policy models.DistributionPolicy) *models.Cooperative {
	t.Helper()
	coop := models.Cooperative{Name: "Test Taşıma Kooperatifi", DistributionPolicy: policy}
	require.NoError(t, db.Create(&coop).Error)
	return &coop
}

func seedMember(t *testing.T, db *gorm.DB, coopID uint, name string, mType models.MemberType, ownership, investment int) *models.Member {
	t.Helper()
	m := models.Member{
		CooperativeID:    coopID,
		Name:             name,
		Type:             mType,
		OwnershipShares:  ownership,
		InvestmentShares: investment,
		VotingRights:     true,
		IsActive:         true,
		JoinedDate:       time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.Create(&m).Error)
	return &m
}

func seedPeriod(t *testing.T, db *gorm.DB, coopID uint, profit string, distPct int64) *models.DistributionPeriod {
	t.Helper()
	p := models.DistributionPeriod{
		CooperativeID:          coopID,
		Type:                   models.PeriodTypeQuarterly,
		PeriodStart:            time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:              time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		ReservePercentage:      decimal.NewFromInt(20),
		DistributionPercentage: decimal.NewFromInt(distPct),
		Status:                 models.PeriodStatusDraft,
	}
	if profit != "" {
		p.TotalProfit = decimal.NewNullDecimal(decimal.RequireFromString(profit))
	}
	require.NoError(t, db.Create(&p).Error)
	return &p
}

func loadRows(t *testing.T, db *gorm.DB, periodID uint) []models.MemberDistribution {
	t.Helper()
	var rows []models.MemberDistribution
	require.NoError(t, db.Where("period_id = ?", periodID).Order("member_id asc").Find(&rows).Error)
	return rows
}

// Senaryo: kâr 10000, dağıtım %80 → havuz 8000; 30 ve 70 paylı iki ortak →
// 2400.00 ve 5600.00
func TestCalculateProportionalAmounts(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db, models.PolicySharesOnly)
	seedMember(t, db, coop.ID, "Ortak 30", models.MemberTypeDriver, 30, 0)
	seedMember(t, db, coop.ID, "Ortak 70", models.MemberTypeDriver, 70, 0)
	period := seedPeriod(t, db, coop.ID, "10000", 80)

	count, pool, err := Calculate(db, period, coop.DistributionPolicy)
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.True(t, pool.Equal(decimal.NewFromInt(8000)))
	require.Equal(t, models.PeriodStatusCalculated, period.Status)
	require.Equal(t, 2, period.DistributionCount)

	rows := loadRows(t, db, period.ID)
	require.Len(t, rows, 2)
	require.Equal(t, "2400.00", rows[0].Amount.StringFixed(2))
	require.Equal(t, "5600.00", rows[1].Amount.StringFixed(2))
	require.Equal(t, "30.00", rows[0].OwnershipPercentage.StringFixed(2))
	require.Equal(t, "70.00", rows[1].OwnershipPercentage.StringFixed(2))
}

func TestCalculateMissingProfit(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db, models.PolicySharesOnly)
	seedMember(t, db, coop.ID, "Ortak", models.MemberTypeDriver, 10, 0)
	period := seedPeriod(t, db, coop.ID, "", 80)

	_, _, err := Calculate(db, period, coop.DistributionPolicy)
	require.ErrorIs(t, err, models.ErrIncompleteFinancials)
	require.Equal(t, models.PeriodStatusDraft, period.Status, "başarısız hesap dönemi ilerletmemeli")
}

func TestCalculateZeroShareBasis(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db, models.PolicySharesOnly)
	seedMember(t, db, coop.ID, "Paysız", models.MemberTypeDriver, 0, 0)
	period := seedPeriod(t, db, coop.ID, "10000", 80)

	// Taban sıfır: bölme hatası yok, satır yok, dönem yine calculated
	count, pool, err := Calculate(db, period, coop.DistributionPolicy)
	require.NoError(t, err)
	require.Equal(t, 0, count)
	require.True(t, pool.Equal(decimal.NewFromInt(8000)))
	require.Equal(t, models.PeriodStatusCalculated, period.Status)
	require.Empty(t, loadRows(t, db, period.ID))
}

func TestCalculateInvalidState(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db, models.PolicySharesOnly)
	seedMember(t, db, coop.ID, "Ortak", models.MemberTypeDriver, 10, 0)
	period := seedPeriod(t, db, coop.ID, "10000", 80)

	_, _, err := Calculate(db, period, coop.DistributionPolicy)
	require.NoError(t, err)
	require.NoError(t, Approve(db, period))

	// Onaylanmış set kilitlidir
	_, _, err = Calculate(db, period, coop.DistributionPolicy)
	require.ErrorIs(t, err, models.ErrInvalidState)
}

func TestRecalculateReplacesRows(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db, models.PolicySharesOnly)
	m1 := seedMember(t, db, coop.ID, "Ortak 30", models.MemberTypeDriver, 30, 0)
	seedMember(t, db, coop.ID, "Ortak 70", models.MemberTypeDriver, 70, 0)
	period := seedPeriod(t, db, coop.ID, "10000", 80)

	_, _, err := Calculate(db, period, coop.DistributionPolicy)
	require.NoError(t, err)
	first := loadRows(t, db, period.ID)

	// Aynı girdiyle tekrar: satırlar eklenmez, aynı (üye, tutar) seti üretilir
	_, _, err = Calculate(db, period, coop.DistributionPolicy)
	require.NoError(t, err)
	second := loadRows(t, db, period.ID)

	require.Len(t, second, len(first))
	for i := range first {
		require.Equal(t, first[i].MemberID, second[i].MemberID)
		require.True(t, first[i].Amount.Equal(second[i].Amount))
	}

	// Pay değişince yeniden hesap yeni seti yazar, eskisinden iz kalmaz
	m1.OwnershipShares = 70
	require.NoError(t, db.Save(m1).Error)

	count, _, err := Calculate(db, period, coop.DistributionPolicy)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	third := loadRows(t, db, period.ID)
	require.Len(t, third, 2)
	require.Equal(t, "4000.00", third[0].Amount.StringFixed(2))
	require.Equal(t, "4000.00", third[1].Amount.StringFixed(2))
}

func TestCalculateExcludesInactiveMembers(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db, models.PolicySharesOnly)
	seedMember(t, db, coop.ID, "Aktif", models.MemberTypeDriver, 50, 0)
	left := seedMember(t, db, coop.ID, "Ayrılan", models.MemberTypeDriver, 50, 0)
	left.IsActive = false
	require.NoError(t, db.Save(left).Error)

	period := seedPeriod(t, db, coop.ID, "10000", 80)
	count, _, err := Calculate(db, period, coop.DistributionPolicy)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	rows := loadRows(t, db, period.ID)
	require.Equal(t, "8000.00", rows[0].Amount.StringFixed(2), "pasif üyenin payı tabana girmemeli")
}

func TestMemberTypePolicySplitsProfitShareAndDividend(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db, models.PolicyMemberType)
	driver := seedMember(t, db, coop.ID, "Şoför", models.MemberTypeDriver, 60, 0)
	investor := seedMember(t, db, coop.ID, "Yatırımcı", models.MemberTypeCustomer, 0, 40)
	// Ortaklık payı olan ama yatırımı olmayan müşteri listeye girmez
	seedMember(t, db, coop.ID, "Paysız Müşteri", models.MemberTypeCustomer, 10, 0)

	period := seedPeriod(t, db, coop.ID, "10000", 100)
	count, _, err := Calculate(db, period, coop.DistributionPolicy)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	rows := loadRows(t, db, period.ID)
	byMember := map[uint]models.MemberDistribution{}
	for _, r := range rows {
		byMember[r.MemberID] = r
	}

	require.Equal(t, models.DistributionTypeProfitShare, byMember[driver.ID].Type)
	require.Equal(t, 60, byMember[driver.ID].ShareBasis)
	require.Equal(t, "6000.00", byMember[driver.ID].Amount.StringFixed(2))

	require.Equal(t, models.DistributionTypeDividend, byMember[investor.ID].Type)
	require.Equal(t, 40, byMember[investor.ID].ShareBasis)
	require.Equal(t, "4000.00", byMember[investor.ID].Amount.StringFixed(2))
}

func TestRoundingStaysWithinBound(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db, models.PolicySharesOnly)
	for i := 0; i < 3; i++ {
		seedMember(t, db, coop.ID, "Ortak", models.MemberTypeDriver, 1, 0)
	}
	period := seedPeriod(t, db, coop.ID, "100", 100)

	count, pool, err := Calculate(db, period, coop.DistributionPolicy)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	rows := loadRows(t, db, period.ID)
	sum := decimal.Zero
	for _, r := range rows {
		require.Equal(t, "33.33", r.Amount.StringFixed(2))
		sum = sum.Add(r.Amount)
	}

	// Toplam, havuz + üye_sayısı × 0.01 sınırını aşamaz
	bound := pool.Add(decimal.NewFromInt(int64(count)).Mul(decimal.RequireFromString("0.01")))
	require.True(t, sum.LessThanOrEqual(bound))
}

func TestApproveTransitions(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db, models.PolicySharesOnly)
	seedMember(t, db, coop.ID, "Ortak", models.MemberTypeDriver, 10, 0)
	period := seedPeriod(t, db, coop.ID, "10000", 80)

	// Hesaplanmamış dönem onaylanamaz
	err := Approve(db, period)
	require.ErrorIs(t, err, models.ErrInvalidState)

	_, _, err = Calculate(db, period, coop.DistributionPolicy)
	require.NoError(t, err)
	require.NoError(t, Approve(db, period))
	require.Equal(t, models.PeriodStatusApproved, period.Status)

	// İkinci onay reddedilir
	err = Approve(db, period)
	require.ErrorIs(t, err, models.ErrInvalidState)
}

func TestCancelTransitions(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db, models.PolicySharesOnly)
	seedMember(t, db, coop.ID, "Ortak", models.MemberTypeDriver, 10, 0)

	draft := seedPeriod(t, db, coop.ID, "10000", 80)
	require.NoError(t, Cancel(db, draft))
	require.Equal(t, models.PeriodStatusCancelled, draft.Status)

	approved := seedPeriod(t, db, coop.ID, "10000", 80)
	_, _, err := Calculate(db, approved, coop.DistributionPolicy)
	require.NoError(t, err)
	require.NoError(t, Approve(db, approved))

	// Onaylanmış dönem iptal edilemez
	err = Cancel(db, approved)
	require.ErrorIs(t, err, models.ErrInvalidState)
}

func TestMarkPaidFlow(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db, models.PolicySharesOnly)
	seedMember(t, db, coop.ID, "Ortak 30", models.MemberTypeDriver, 30, 0)
	seedMember(t, db, coop.ID, "Ortak 70", models.MemberTypeDriver, 70, 0)
	period := seedPeriod(t, db, coop.ID, "10000", 80)

	_, _, err := Calculate(db, period, coop.DistributionPolicy)
	require.NoError(t, err)

	rows := loadRows(t, db, period.ID)
	require.Len(t, rows, 2)

	// Onaydan önce ödeme işlenemez
	err = MarkPaid(db, &rows[0], "bank_transfer", "", time.Now())
	require.ErrorIs(t, err, models.ErrInvalidState)

	require.NoError(t, Approve(db, period))

	now := time.Now()
	require.NoError(t, MarkPaid(db, &rows[0], "bank_transfer", "DEK-2025-001", now))
	require.True(t, rows[0].Paid)
	require.Equal(t, "DEK-2025-001", rows[0].PaymentReference)
	require.NotNil(t, rows[0].PaidDate)

	// Aynı satıra ikinci ödeme AlreadyPaid
	err = MarkPaid(db, &rows[0], "cash", "", time.Now())
	require.ErrorIs(t, err, models.ErrAlreadyPaid)

	// Tüm satırlar ödenince dönem distributed olur
	var fresh models.DistributionPeriod
	require.NoError(t, db.First(&fresh, period.ID).Error)
	require.Equal(t, models.PeriodStatusApproved, fresh.Status)

	require.NoError(t, MarkPaid(db, &rows[1], "cash", "", time.Now()))
	require.NotEmpty(t, rows[1].PaymentReference, "referans verilmediyse üretilmeli")

	require.NoError(t, db.First(&fresh, period.ID).Error)
	require.Equal(t, models.PeriodStatusDistributed, fresh.Status)
}

func TestMarkPaidRaceOnSameRow(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db, models.PolicySharesOnly)
	seedMember(t, db, coop.ID, "Ortak", models.MemberTypeDriver, 10, 0)
	period := seedPeriod(t, db, coop.ID, "10000", 80)

	_, _, err := Calculate(db, period, coop.DistributionPolicy)
	require.NoError(t, err)
	require.NoError(t, Approve(db, period))

	rows := loadRows(t, db, period.ID)

	// İki elde aynı satır: biri kazanır, diğeri paid üzerindeki
	// compare-and-set'e takılır
	stale := rows[0]
	require.NoError(t, MarkPaid(db, &rows[0], "bank_transfer", "", time.Now()))
	err = MarkPaid(db, &stale, "cash", "", time.Now())
	require.ErrorIs(t, err, models.ErrAlreadyPaid)
}
