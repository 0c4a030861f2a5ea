package governance

import (
	"fmt"
	"time"

	"kooperatif-backend/internal/membership"
	"kooperatif-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var hundred = decimal.NewFromInt(100)

// CastVote: üyenin oyunu kaydeder. (proposal, member) başına tek satır;
// tekrar oy kullanmak önceki tercihi değiştirir, yeni satır eklemez.
func CastVote(db *gorm.DB, proposal *models.Proposal, member *models.Member, choice models.VoteChoice, comment string, now time.Time) (*models.Vote, error) {
	if member.CooperativeID != proposal.CooperativeID {
		return nil, fmt.Errorf("%w: üye bu kooperatife ait değil", models.ErrNotEligible)
	}
	if !membership.IsEligibleVoter(member) {
		return nil, fmt.Errorf("%w: üye pasif veya oy hakkı yok", models.ErrNotEligible)
	}
	if proposal.Status != models.ProposalStatusOpen {
		return nil, fmt.Errorf("%w: öneri açık değil", models.ErrVotingClosed)
	}
	if proposal.VotingOpens == nil || proposal.VotingCloses == nil {
		return nil, fmt.Errorf("%w: oylama penceresi tanımlı değil", models.ErrVotingClosed)
	}
	if now.Before(*proposal.VotingOpens) || now.After(*proposal.VotingCloses) {
		return nil, fmt.Errorf("%w: oylama penceresi dışında", models.ErrVotingClosed)
	}

	vote := models.Vote{
		ProposalID: proposal.ID,
		MemberID:   member.ID,
		Choice:     choice,
		Comment:    comment,
		CastAt:     now,
	}

	// Unique index (proposal_id, member_id) üzerinden upsert:
	// eşzamanlı iki oy "son yazan kazanır" şeklinde serileşir.
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "proposal_id"}, {Name: "member_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"choice":     vote.Choice,
			"comment":    vote.Comment,
			"cast_at":    vote.CastAt,
			"updated_at": now,
		}),
	}).Create(&vote).Error
	if err != nil {
		return nil, fmt.Errorf("oy kaydedilemedi: %w", err)
	}

	// Upsert güncellemeye düştüyse mevcut satırı geri oku
	var saved models.Vote
	if err := db.First(&saved, "proposal_id = ? AND member_id = ?", proposal.ID, member.ID).Error; err != nil {
		return nil, fmt.Errorf("oy okunamadı: %w", err)
	}
	return &saved, nil
}

// Tally: önerinin o anki oy dökümünü hesaplar. Saf bir okumadır; aynı oy
// seti için her çağrıda aynı sonucu üretir ve hiçbir şey yazmaz.
//
// Yeter sayı tabanı (eligible_voters) çözümleme anındaki aktif + oy haklı
// üye sayısıdır; öneri açıldığı andaki liste saklanmaz. Kapanışta saklanan
// bağlayıcı sonuç bu hesabın o anki çıktısıdır.
func Tally(db *gorm.DB, proposal *models.Proposal, now time.Time) (*models.ProposalResult, error) {
	eligible, err := membership.CountEligibleVoters(db, proposal.CooperativeID)
	if err != nil {
		return nil, fmt.Errorf("oy haklı üyeler sayılamadı: %w", err)
	}

	type choiceCount struct {
		Choice models.VoteChoice
		Count  int
	}
	var counts []choiceCount
	if err := db.Model(&models.Vote{}).
		Select("choice, count(*) as count").
		Where("proposal_id = ?", proposal.ID).
		Group("choice").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("oylar sayılamadı: %w", err)
	}

	result := models.ProposalResult{
		ProposalID:     proposal.ID,
		EligibleVoters: eligible,
		ResolvedAt:     now,
	}
	for _, cc := range counts {
		switch cc.Choice {
		case models.VoteChoiceYes:
			result.YesCount = cc.Count
		case models.VoteChoiceNo:
			result.NoCount = cc.Count
		case models.VoteChoiceAbstain:
			result.AbstainCount = cc.Count
		}
	}
	result.TotalVotes = result.YesCount + result.NoCount + result.AbstainCount

	// Sıfır üyeli kooperatifte katılım tanımsızdır: 0 kabul edilir ve
	// yeter sayı hiçbir zaman sağlanmış sayılmaz.
	result.TurnoutPercentage = decimal.Zero
	result.QuorumMet = false
	if eligible > 0 {
		result.TurnoutPercentage = decimal.NewFromInt(int64(result.TotalVotes)).
			Mul(hundred).
			Div(decimal.NewFromInt(int64(eligible)))
		result.QuorumMet = result.TurnoutPercentage.GreaterThanOrEqual(proposal.QuorumRequired)
	}

	// Kabul oranında çekimserler paydaya girmez
	result.ApprovalPercentage = decimal.Zero
	if yesNo := result.YesCount + result.NoCount; yesNo > 0 {
		result.ApprovalPercentage = decimal.NewFromInt(int64(result.YesCount)).
			Mul(hundred).
			Div(decimal.NewFromInt(int64(yesNo)))
	}

	result.Approved = result.QuorumMet && result.ApprovalPercentage.GreaterThanOrEqual(proposal.ApprovalThreshold)

	return &result, nil
}

// Resolve: kapanmış öneri için saklanan bağlayıcı sonucu, açık öneri için
// o anki geçici dökümü döner.
func Resolve(db *gorm.DB, proposal *models.Proposal, now time.Time) (*models.ProposalResult, bool, error) {
	switch proposal.Status {
	case models.ProposalStatusPassed, models.ProposalStatusFailed:
		var result models.ProposalResult
		if err := db.First(&result, "proposal_id = ?", proposal.ID).Error; err != nil {
			return nil, false, fmt.Errorf("bağlayıcı sonuç okunamadı: %w", err)
		}
		return &result, true, nil
	case models.ProposalStatusOpen, models.ProposalStatusDraft:
		result, err := Tally(db, proposal, now)
		if err != nil {
			return nil, false, err
		}
		return result, false, nil
	default:
		return nil, false, fmt.Errorf("%w: iptal edilmiş önerinin sonucu yok", models.ErrInvalidState)
	}
}
