package governance

import (
	"testing"
	"time"

	"kooperatif-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedDraftProposal(t *testing.T, db *gorm.DB, coopID uint, withWindow bool) *models.Proposal {
	t.Helper()
	p := models.Proposal{
		CooperativeID:     coopID,
		Type:              models.ProposalTypeGeneral,
		Title:             "Taslak öneri",
		QuorumRequired:    decimal.NewFromInt(50),
		ApprovalThreshold: decimal.NewFromInt(60),
		Status:            models.ProposalStatusDraft,
		CreatedBy:         1,
	}
	if withWindow {
		opens := time.Now().Add(-time.Hour)
		closes := time.Now().Add(time.Hour)
		p.VotingOpens = &opens
		p.VotingCloses = &closes
	}
	require.NoError(t, db.Create(&p).Error)
	return &p
}

func TestOpenRequiresWindow(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db)

	p := seedDraftProposal(t, db, coop.ID, false)
	err := Transition(db, p, ActionOpen, time.Now())
	require.ErrorIs(t, err, models.ErrInvalidState)
	require.Equal(t, models.ProposalStatusDraft, p.Status)
}

func TestOpenFromDraft(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db)

	p := seedDraftProposal(t, db, coop.ID, true)
	require.NoError(t, Transition(db, p, ActionOpen, time.Now()))
	require.Equal(t, models.ProposalStatusOpen, p.Status)

	// Açık öneri tekrar açılamaz
	err := Transition(db, p, ActionOpen, time.Now())
	require.ErrorIs(t, err, models.ErrInvalidState)
}

func TestClosePersistsBindingResult(t *testing.T) {
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

	require.NoError(t, Transition(db, p, ActionClose, time.Now()))
	require.Equal(t, models.ProposalStatusPassed, p.Status)

	// Bağlayıcı sonuç saklanmış olmalı
	var stored models.ProposalResult
	require.NoError(t, db.First(&stored, "proposal_id = ?", p.ID).Error)
	require.Equal(t, 4, stored.YesCount)
	require.Equal(t, 10, stored.EligibleVoters)
	require.True(t, stored.Approved)

	// Resolve artık saklanan sonucu döner
	result, binding, err := Resolve(db, p, time.Now())
	require.NoError(t, err)
	require.True(t, binding)
	require.Equal(t, stored.ID, result.ID)

	// İkinci kapanış denemesi reddedilir; ikinci sonuç satırı yazılmaz
	err = Transition(db, p, ActionClose, time.Now())
	require.ErrorIs(t, err, models.ErrInvalidState)
	var count int64
	require.NoError(t, db.Model(&models.ProposalResult{}).Where("proposal_id = ?", p.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestCloseFailsProposalBelowThreshold(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db)
	members := seedVoters(t, db, coop.ID, 4)
	p := seedOpenProposal(t, db, coop.ID, 50, 60)

	mustCast(t, db, p, &members[0], models.VoteChoiceYes)
	mustCast(t, db, p, &members[1], models.VoteChoiceNo)
	mustCast(t, db, p, &members[2], models.VoteChoiceNo)

	require.NoError(t, Transition(db, p, ActionClose, time.Now()))
	require.Equal(t, models.ProposalStatusFailed, p.Status)
}

func TestCancelTransitions(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db)

	// Taslaktan iptal
	draft := seedDraftProposal(t, db, coop.ID, true)
	require.NoError(t, Transition(db, draft, ActionCancel, time.Now()))
	require.Equal(t, models.ProposalStatusCancelled, draft.Status)

	// Açıktan iptal
	open := seedOpenProposal(t, db, coop.ID, 50, 60)
	require.NoError(t, Transition(db, open, ActionCancel, time.Now()))
	require.Equal(t, models.ProposalStatusCancelled, open.Status)

	// Uç durumdan iptal edilemez
	err := Transition(db, open, ActionCancel, time.Now())
	require.ErrorIs(t, err, models.ErrInvalidState)

	// İptal edilen önerinin sonucu yok
	_, _, err = Resolve(db, open, time.Now())
	require.ErrorIs(t, err, models.ErrInvalidState)
}

func TestUnknownActionRejected(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db)
	p := seedDraftProposal(t, db, coop.ID, true)

	err := Transition(db, p, TransitionAction("archive"), time.Now())
	require.ErrorIs(t, err, models.ErrInvalidState)
}

func TestCloseIfExpired(t *testing.T) {
	db := newTestDB(t)
	coop := seedCooperative(t, db)
	members := seedVoters(t, db, coop.ID, 2)
	p := seedOpenProposal(t, db, coop.ID, 0, 50)

	mustCast(t, db, p, &members[0], models.VoteChoiceYes)
	mustCast(t, db, p, &members[1], models.VoteChoiceYes)

	// Pencere içindeyken dokunulmaz
	require.NoError(t, CloseIfExpired(db, p, time.Now()))
	require.Equal(t, models.ProposalStatusOpen, p.Status)

	// Kapanış tarihi geçince ilk dokunuşta kapanır
	require.NoError(t, CloseIfExpired(db, p, p.VotingCloses.Add(time.Minute)))
	require.Equal(t, models.ProposalStatusPassed, p.Status)
}
