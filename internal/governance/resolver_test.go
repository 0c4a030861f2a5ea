package governance

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

func seedCooperative(t *testing.T, db *gorm.DB) *models.Cooperative {
	t.Helper()
	coop := models.Cooperative{Name: "Test Taşıma Kooperatifi", DistributionPolicy: models.PolicyMemberType}
	require.NoError(t, db.Create(&coop).Error)
	return &coop
}

func seedVoters(t *testing.T, db *gorm.DB, coopID uint, n int) []models.Member {
	t.Helper()
	members := make([]models.Member, 0, n)
	for i := 0; i < n; i++ {
		m := models.Member{
			CooperativeID:   coopID,
			Name:            "Üye",
			Type:            models.MemberTypeDriver,
			OwnershipShares: 1,
			VotingRights:    true,
			IsActive:        true,
			JoinedDate:      time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		require.NoError(t, db.Create(&m).Error)
		members = append(members, m)
	}
	return members
}

func seedOpenProposal(t *testing.T, db *gorm.DB, coopID uint, quorum, threshold int64) *models.Proposal {
	t.Helper()
	opens := time.Now().Add(-time.Hour)
	closes := time.Now().Add(time.Hour)
	p := models.Proposal{
		CooperativeID:     coopID,
		Type:              models.ProposalTypeGeneral,
		Title:             "Yeni hat önerisi",
		VotingOpens:       &opens,
		VotingCloses:      &closes,
		QuorumRequired:    decimal.NewFromInt(quorum),
		ApprovalThreshold: decimal.NewFromInt(threshold),
		Status:            models.ProposalStatusOpen,
		CreatedBy:         1,
	}
	require.NoError(t, db.Create(&p).Error)
	return &p
}

func mustCast(t *testing.T, db *gorm.DB, p *models.Proposal, m *models.Member, choice models.VoteChoice) {
	t.Helper()
	_, err := CastVote(db, p, m, choice, "", time.Now())
	require.NoError(t, err)
}

func TestCastVoteReplacesNotDuplicates(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db)
	members := seedVoters(t, db, coop.ID, 3)
	p := seedOpenProposal(t, db, coop.ID, 0, 50)

	mustCast(t, db, p, &members[0], models.VoteChoiceYes)
	mustCast(t, db, p, &members[0], models.VoteChoiceNo)
	mustCast(t, db, p, &members[0], models.VoteChoiceAbstain)

	var count int64
	require.NoError(t, db.Model(&models.Vote{}).Where("proposal_id = ?", p.ID).Count(&count).Error)
	require.EqualValues(t, 1, count, "aynı üyenin tekrar oyu yeni satır açmamalı")

	var vote models.Vote
	require.NoError(t, db.First(&vote, "proposal_id = ? AND member_id = ?", p.ID, members[0].ID).Error)
	require.Equal(t, models.VoteChoiceAbstain, vote.Choice, "son oy geçerli olmalı")

	result, err := Tally(db, p, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalVotes, "tekrar oylar toplam oyu artırmamalı")
}

func TestCastVoteEligibility(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db)
	p := seedOpenProposal(t, db, coop.ID, 0, 50)

	inactive := models.Member{
		CooperativeID: coop.ID, Name: "Pasif", Type: models.MemberTypeDriver,
		VotingRights: true, IsActive: false, JoinedDate: time.Now(),
	}
	require.NoError(t, db.Create(&inactive).Error)

	noRights := models.Member{
		CooperativeID: coop.ID, Name: "Oysuz", Type: models.MemberTypeDriver,
		VotingRights: false, IsActive: true, JoinedDate: time.Now(),
	}
	require.NoError(t, db.Create(&noRights).Error)

	_, err := CastVote(db, p, &inactive, models.VoteChoiceYes, "", time.Now())
	require.ErrorIs(t, err, models.ErrNotEligible)

	_, err = CastVote(db, p, &noRights, models.VoteChoiceYes, "", time.Now())
	require.ErrorIs(t, err, models.ErrNotEligible)

	// Oy hakkı olmayan üyenin oy kaydı hiç oluşmamalı
	var count int64
	require.NoError(t, db.Model(&models.Vote{}).Where("proposal_id = ?", p.ID).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestCastVoteWindowAndStatus(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db)
	members := seedVoters(t, db, coop.ID, 1)

	p := seedOpenProposal(t, db, coop.ID, 0, 50)

	// Pencere dışı: kapanıştan sonra
	_, err := CastVote(db, p, &members[0], models.VoteChoiceYes, "", p.VotingCloses.Add(time.Minute))
	require.ErrorIs(t, err, models.ErrVotingClosed)

	// Pencere dışı: açılıştan önce
	_, err = CastVote(db, p, &members[0], models.VoteChoiceYes, "", p.VotingOpens.Add(-time.Minute))
	require.ErrorIs(t, err, models.ErrVotingClosed)

	// Taslak öneriye oy verilemez
	draft := models.Proposal{
		CooperativeID: coop.ID, Type: models.ProposalTypeGeneral, Title: "Taslak",
		Status: models.ProposalStatusDraft, CreatedBy: 1,
	}
	require.NoError(t, db.Create(&draft).Error)
	_, err = CastVote(db, &draft, &members[0], models.VoteChoiceYes, "", time.Now())
	require.ErrorIs(t, err, models.ErrVotingClosed)
}

// Senaryo: 10 oy haklı üye, quorum %50, eşik %60; 4 evet 2 hayır →
// katılım %60 (yeter sayı tamam), kabul %66.67 (eşik aşıldı) → kabul.
func TestTallyQuorumAndThresholdScenario(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db)
	members := seedVoters(t, db, coop.ID, 10)
	p := seedOpenProposal(t, db, coop.ID, 50, 60)

	for i := 0; i < 4; i++ {
		mustCast(t, db, p, &members[i], models.VoteChoiceYes)
	}
	for i := 4; i < 6; i++ {
		mustCast(t, db, p, &members[i], models.VoteChoiceNo)
	}

	result, err := Tally(db, p, time.Now())
	require.NoError(t, err)

	require.Equal(t, 10, result.EligibleVoters)
	require.Equal(t, 4, result.YesCount)
	require.Equal(t, 2, result.NoCount)
	require.Equal(t, 6, result.TotalVotes)
	require.True(t, result.TurnoutPercentage.Equal(decimal.NewFromInt(60)))
	require.Equal(t, "66.67", result.ApprovalPercentage.Round(2).String())
	require.True(t, result.QuorumMet)
	require.True(t, result.Approved)
}

func TestTallyZeroEligibleVoters(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db)
	// quorum_required 0 olsa bile üye yoksa yeter sayı sağlanmış sayılmaz
	p := seedOpenProposal(t, db, coop.ID, 0, 50)

	result, err := Tally(db, p, time.Now())
	require.NoError(t, err)
	require.Equal(t, 0, result.EligibleVoters)
	require.True(t, result.TurnoutPercentage.IsZero())
	require.False(t, result.QuorumMet)
	require.False(t, result.Approved)
}

func TestTallyFullYesButQuorumMissed(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db)
	members := seedVoters(t, db, coop.ID, 10)
	p := seedOpenProposal(t, db, coop.ID, 50, 60)

	// %100 evet ama katılım %30: kabul edilmemeli
	for i := 0; i < 3; i++ {
		mustCast(t, db, p, &members[i], models.VoteChoiceYes)
	}

	result, err := Tally(db, p, time.Now())
	require.NoError(t, err)
	require.True(t, result.ApprovalPercentage.Equal(decimal.NewFromInt(100)))
	require.False(t, result.QuorumMet)
	require.False(t, result.Approved)
}

func TestTallyAbstentionsExcludedFromApproval(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db)
	members := seedVoters(t, db, coop.ID, 4)
	p := seedOpenProposal(t, db, coop.ID, 50, 60)

	mustCast(t, db, p, &members[0], models.VoteChoiceYes)
	mustCast(t, db, p, &members[1], models.VoteChoiceNo)
	mustCast(t, db, p, &members[2], models.VoteChoiceAbstain)
	mustCast(t, db, p, &members[3], models.VoteChoiceAbstain)

	result, err := Tally(db, p, time.Now())
	require.NoError(t, err)
	require.Equal(t, 2, result.AbstainCount)
	require.Equal(t, 4, result.TotalVotes)
	// Kabul oranı 1/(1+1): çekimserler paydada yok
	require.True(t, result.ApprovalPercentage.Equal(decimal.NewFromInt(50)))
	// Katılımda çekimserler sayılır: 4/4
	require.True(t, result.TurnoutPercentage.Equal(decimal.NewFromInt(100)))
}

func TestTallyAllAbstainApprovalZero(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db)
	members := seedVoters(t, db, coop.ID, 2)
	p := seedOpenProposal(t, db, coop.ID, 0, 50)

	mustCast(t, db, p, &members[0], models.VoteChoiceAbstain)
	mustCast(t, db, p, &members[1], models.VoteChoiceAbstain)

	result, err := Tally(db, p, time.Now())
	require.NoError(t, err)
	// yes+no = 0: kabul oranı sıfıra çözülür, bölme hatası olmaz
	require.True(t, result.ApprovalPercentage.IsZero())
	require.False(t, result.Approved)
}

func TestTallyIsDeterministic(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db)
	members := seedVoters(t, db, coop.ID, 5)
	p := seedOpenProposal(t, db, coop.ID, 40, 50)

	mustCast(t, db, p, &members[0], models.VoteChoiceYes)
	mustCast(t, db, p, &members[1], models.VoteChoiceYes)
	mustCast(t, db, p, &members[2], models.VoteChoiceNo)

	now := time.Now()
	first, err := Tally(db, p, now)
	require.NoError(t, err)
	second, err := Tally(db, p, now)
	require.NoError(t, err)

	require.Equal(t, first.YesCount, second.YesCount)
	require.Equal(t, first.NoCount, second.NoCount)
	require.Equal(t, first.TotalVotes, second.TotalVotes)
	require.Equal(t, first.EligibleVoters, second.EligibleVoters)
	require.True(t, first.TurnoutPercentage.Equal(second.TurnoutPercentage))
	require.True(t, first.ApprovalPercentage.Equal(second.ApprovalPercentage))
	require.Equal(t, first.Approved, second.Approved)
}

func TestTallyEligibleCountedAtResolutionTime(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db)
	members := seedVoters(t, db, coop.ID, 4)
	p := seedOpenProposal(t, db, coop.ID, 50, 50)

	mustCast(t, db, p, &members[0], models.VoteChoiceYes)
	mustCast(t, db, p, &members[1], models.VoteChoiceYes)

	first, err := Tally(db, p, time.Now())
	require.NoError(t, err)
	require.Equal(t, 4, first.EligibleVoters)
	require.True(t, first.TurnoutPercentage.Equal(decimal.NewFromInt(50)))

	// Oylama sürerken iki üye pasife alınırsa taban küçülür
	require.NoError(t, db.Model(&models.Member{}).
		Where("id IN ?", []uint{members[2].ID, members[3].ID}).
		Update("is_active", false).Error)

	second, err := Tally(db, p, time.Now())
	require.NoError(t, err)
	require.Equal(t, 2, second.EligibleVoters)
	require.True(t, second.TurnoutPercentage.Equal(decimal.NewFromInt(100)))
}
