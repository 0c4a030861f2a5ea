package governance

import (
	"fmt"
	"time"

	"kooperatif-backend/internal/models"

	"gorm.io/gorm"
)

type TransitionAction string

const (
	ActionOpen   TransitionAction = "open"
	ActionClose  TransitionAction = "close"
	ActionCancel TransitionAction = "cancel"
)

// Transition: öneri yaşam döngüsü geçişleri.
//
//	draft → open            (pencere tarihleri set olmalı)
//	open  → passed/failed   (close: bağlayıcı sonuç bir kez hesaplanıp saklanır)
//	draft → cancelled
//	open  → cancelled
//
// passed/failed/cancelled uç durumlardır. Durum güncellemeleri mevcut durum
// üzerinde koşullu (compare-and-set) yapılır; iki eşzamanlı kapanış
// denemesinden yalnız biri sonucu yazar.
func Transition(db *gorm.DB, proposal *models.Proposal, action TransitionAction, now time.Time) error {
	switch action {
	case ActionOpen:
		return openProposal(db, proposal)
	case ActionClose:
		return closeProposal(db, proposal, now)
	case ActionCancel:
		return cancelProposal(db, proposal)
	default:
		return fmt.Errorf("%w: bilinmeyen aksiyon '%s'", models.ErrInvalidState, action)
	}
}

func openProposal(db *gorm.DB, proposal *models.Proposal) error {
	if proposal.Status != models.ProposalStatusDraft {
		return fmt.Errorf("%w: sadece taslak öneri açılabilir (durum: %s)", models.ErrInvalidState, proposal.Status)
	}
	if proposal.VotingOpens == nil || proposal.VotingCloses == nil {
		return fmt.Errorf("%w: oylama penceresi tarihleri set edilmeden öneri açılamaz", models.ErrInvalidState)
	}
	if proposal.VotingCloses.Before(*proposal.VotingOpens) {
		return fmt.Errorf("%w: voting_closes voting_opens'tan önce olamaz", models.ErrInvalidState)
	}

	res := db.Model(&models.Proposal{}).
		Where("id = ? AND status = ?", proposal.ID, models.ProposalStatusDraft).
		Update("status", models.ProposalStatusOpen)
	if res.Error != nil {
		return fmt.Errorf("öneri açılamadı: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: öneri bu sırada başka bir işlemle değişti", models.ErrInvalidState)
	}

	proposal.Status = models.ProposalStatusOpen
	return nil
}

// closeProposal: bağlayıcı dökümü hesaplar, ProposalResult olarak saklar
// ve önerinin durumunu sonuca göre passed/failed yapar. Tek transaction;
// iki eşzamanlı kapanıştan yalnız biri satır yazabilir.
func closeProposal(db *gorm.DB, proposal *models.Proposal, now time.Time) error {
	if proposal.Status != models.ProposalStatusOpen {
		return fmt.Errorf("%w: sadece açık öneri kapatılabilir (durum: %s)", models.ErrInvalidState, proposal.Status)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		result, err := Tally(tx, proposal, now)
		if err != nil {
			return err
		}

		newStatus := models.ProposalStatusFailed
		if result.Approved {
			newStatus = models.ProposalStatusPassed
		}

		res := tx.Model(&models.Proposal{}).
			Where("id = ? AND status = ?", proposal.ID, models.ProposalStatusOpen).
			Update("status", newStatus)
		if res.Error != nil {
			return fmt.Errorf("öneri kapatılamadı: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: öneri bu sırada başka bir işlemle kapatıldı", models.ErrInvalidState)
		}

		if err := tx.Create(result).Error; err != nil {
			return fmt.Errorf("bağlayıcı sonuç kaydedilemedi: %w", err)
		}

		proposal.Status = newStatus
		return nil
	})
}

func cancelProposal(db *gorm.DB, proposal *models.Proposal) error {
	if proposal.Status != models.ProposalStatusDraft && proposal.Status != models.ProposalStatusOpen {
		return fmt.Errorf("%w: sadece taslak veya açık öneri iptal edilebilir (durum: %s)", models.ErrInvalidState, proposal.Status)
	}

	res := db.Model(&models.Proposal{}).
		Where("id = ? AND status IN ?", proposal.ID, []models.ProposalStatus{models.ProposalStatusDraft, models.ProposalStatusOpen}).
		Update("status", models.ProposalStatusCancelled)
	if res.Error != nil {
		return fmt.Errorf("öneri iptal edilemedi: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: öneri bu sırada başka bir işlemle değişti", models.ErrInvalidState)
	}

	proposal.Status = models.ProposalStatusCancelled
	return nil
}

// CloseIfExpired: oylama bitiş tarihi geçmiş açık öneriyi kapatır.
// Okuma uçlarından çağrılır; süresi dolan öneri ilk dokunuşta kapanır.
func CloseIfExpired(db *gorm.DB, proposal *models.Proposal, now time.Time) error {
	if proposal.Status != models.ProposalStatusOpen || proposal.VotingCloses == nil {
		return nil
	}
	if !now.After(*proposal.VotingCloses) {
		return nil
	}
	return closeProposal(db, proposal, now)
}
