package governance

import (
	"errors"
	"fmt"
	"time"

	"kooperatif-backend/internal/audit"
	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type CreateProposalRequest struct {
	Type              string          `json:"type"` // general | financial | bylaw | election | route
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	VotingOpens       *string         `json:"voting_opens"`  // RFC3339 veya "2006-01-02"
	VotingCloses      *string         `json:"voting_closes"` // RFC3339 veya "2006-01-02"
	QuorumRequired    decimal.Decimal `json:"quorum_required"`
	ApprovalThreshold decimal.Decimal `json:"approval_threshold"`
	// super_admin için opsiyonel:
	CooperativeID *uint `json:"cooperative_id"`
}

type UpdateProposalRequest struct {
	Type              *string          `json:"type"`
	Title             *string          `json:"title"`
	Description       *string          `json:"description"`
	VotingOpens       *string          `json:"voting_opens"`
	VotingCloses      *string          `json:"voting_closes"`
	QuorumRequired    *decimal.Decimal `json:"quorum_required"`
	ApprovalThreshold *decimal.Decimal `json:"approval_threshold"`
}

type CastVoteRequest struct {
	MemberID *uint  `json:"member_id"` // member rolü için JWT'den çözülür
	Choice   string `json:"choice"`    // yes | no | abstain
	Comment  string `json:"comment"`
}

type TransitionRequest struct {
	Action string `json:"action"` // open | close | cancel
}

type ProposalResponse struct {
	ID                uint            `json:"id"`
	CooperativeID     uint            `json:"cooperative_id"`
	Type              string          `json:"type"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	VotingOpens       *string         `json:"voting_opens"`
	VotingCloses      *string         `json:"voting_closes"`
	QuorumRequired    decimal.Decimal `json:"quorum_required"`
	ApprovalThreshold decimal.Decimal `json:"approval_threshold"`
	Status            string          `json:"status"`
}

type VoteResponse struct {
	ID         uint   `json:"id"`
	ProposalID uint   `json:"proposal_id"`
	MemberID   uint   `json:"member_id"`
	Choice     string `json:"choice"`
	Comment    string `json:"comment"`
	CastAt     string `json:"cast_at"`
}

type ProposalResultResponse struct {
	ProposalID         uint   `json:"proposal_id"`
	YesCount           int    `json:"yes_count"`
	NoCount            int    `json:"no_count"`
	AbstainCount       int    `json:"abstain_count"`
	TotalVotes         int    `json:"total_votes"`
	EligibleVoters     int    `json:"eligible_voters"`
	TurnoutPercentage  string `json:"turnout_percentage"`
	ApprovalPercentage string `json:"approval_percentage"`
	QuorumMet          bool   `json:"quorum_met"`
	Approved           bool   `json:"approved"`
	Binding            bool   `json:"binding"` // kapanışta saklanan sonuç mu, geçici döküm mü
	ResolvedAt         string `json:"resolved_at"`
}

// -------------------------
// Yardımcılar
// -------------------------

func getUserInfo(c *fiber.Ctx) (uint, string, error) {
	userIDVal := c.Locals(auth.CtxUserIDKey)
	userID, ok := userIDVal.(uint)
	if !ok {
		return 0, "", fiber.NewError(fiber.StatusForbidden, "Kullanıcı bilgisi alınamadı")
	}

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		return 0, "", fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı bulunamadı")
	}

	return userID, user.Name, nil
}

func resolveCoopIDFromBodyOrRole(c *fiber.Ctx, bodyCoopID *uint) (uint, error) {
	roleVal := c.Locals(auth.CtxUserRoleKey)
	role, ok := roleVal.(models.UserRole)
	if !ok {
		return 0, fiber.NewError(fiber.StatusForbidden, "Rol bilgisi alınamadı")
	}

	if role != models.RoleSuperAdmin {
		cPtr, ok := c.Locals(auth.CtxCooperativeIDKey).(*uint)
		if !ok || cPtr == nil {
			return 0, fiber.NewError(fiber.StatusForbidden, "Kooperatif bilgisi bulunamadı")
		}
		return *cPtr, nil
	}

	// super_admin
	if bodyCoopID == nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "cooperative_id zorunlu")
	}
	return *bodyCoopID, nil
}

func resolveCoopIDFromQueryOrRole(c *fiber.Ctx) (uint, error) {
	roleVal := c.Locals(auth.CtxUserRoleKey)
	role, ok := roleVal.(models.UserRole)
	if !ok {
		return 0, fiber.NewError(fiber.StatusForbidden, "Rol bilgisi alınamadı")
	}

	if role != models.RoleSuperAdmin {
		cPtr, ok := c.Locals(auth.CtxCooperativeIDKey).(*uint)
		if !ok || cPtr == nil {
			return 0, fiber.NewError(fiber.StatusForbidden, "Kooperatif bilgisi bulunamadı")
		}
		return *cPtr, nil
	}

	// super_admin
	cidStr := c.Query("cooperative_id")
	if cidStr == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, "cooperative_id zorunlu")
	}
	var cid uint
	if _, err := fmt.Sscan(cidStr, &cid); err != nil || cid == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "cooperative_id geçersiz")
	}
	return cid, nil
}

func parseProposalType(s string) (models.ProposalType, bool) {
	switch models.ProposalType(s) {
	case models.ProposalTypeGeneral, models.ProposalTypeFinancial, models.ProposalTypeBylaw,
		models.ProposalTypeElection, models.ProposalTypeRoute:
		return models.ProposalType(s), true
	}
	return "", false
}

func parseVoteChoice(s string) (models.VoteChoice, bool) {
	switch models.VoteChoice(s) {
	case models.VoteChoiceYes, models.VoteChoiceNo, models.VoteChoiceAbstain:
		return models.VoteChoice(s), true
	}
	return "", false
}

// "2025-06-01T10:00:00Z" veya "2025-06-01"
func parseDateTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func validPercent(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(decimal.NewFromInt(100))
}

func toProposalResponse(p *models.Proposal) ProposalResponse {
	res := ProposalResponse{
		ID:                p.ID,
		CooperativeID:     p.CooperativeID,
		Type:              string(p.Type),
		Title:             p.Title,
		Description:       p.Description,
		QuorumRequired:    p.QuorumRequired,
		ApprovalThreshold: p.ApprovalThreshold,
		Status:            string(p.Status),
	}
	if p.VotingOpens != nil {
		s := p.VotingOpens.Format(time.RFC3339)
		res.VotingOpens = &s
	}
	if p.VotingCloses != nil {
		s := p.VotingCloses.Format(time.RFC3339)
		res.VotingCloses = &s
	}
	return res
}

func toResultResponse(r *models.ProposalResult, binding bool) ProposalResultResponse {
	return ProposalResultResponse{
		ProposalID:         r.ProposalID,
		YesCount:           r.YesCount,
		NoCount:            r.NoCount,
		AbstainCount:       r.AbstainCount,
		TotalVotes:         r.TotalVotes,
		EligibleVoters:     r.EligibleVoters,
		TurnoutPercentage:  r.TurnoutPercentage.StringFixed(2),
		ApprovalPercentage: r.ApprovalPercentage.StringFixed(2),
		QuorumMet:          r.QuorumMet,
		Approved:           r.Approved,
		Binding:            binding,
		ResolvedAt:         r.ResolvedAt.Format(time.RFC3339),
	}
}

// Alan hatalarını HTTP koduna çevir
func domainError(err error) error {
	switch {
	case errors.Is(err, models.ErrNotEligible):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, models.ErrVotingClosed):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, models.ErrInvalidState):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "İşlem tamamlanamadı")
	}
}

func loadProposal(c *fiber.Ctx) (*models.Proposal, uint, error) {
	coopID, err := resolveCoopIDFromQueryOrRole(c)
	if err != nil {
		return nil, 0, err
	}

	var proposal models.Proposal
	if err := database.DB.First(&proposal, "id = ? AND cooperative_id = ?", c.Params("id"), coopID).Error; err != nil {
		return nil, 0, fiber.NewError(fiber.StatusNotFound, "Öneri bulunamadı")
	}
	return &proposal, coopID, nil
}

// -------------------------------------------------
// POST /api/proposals
// -------------------------------------------------
func CreateProposalHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateProposalRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		coopID, err := resolveCoopIDFromBodyOrRole(c, body.CooperativeID)
		if err != nil {
			return err
		}

		if body.Title == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Başlık boş olamaz")
		}
		pType, ok := parseProposalType(body.Type)
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "type geçersiz")
		}
		if !validPercent(body.QuorumRequired) || !validPercent(body.ApprovalThreshold) {
			return fiber.NewError(fiber.StatusBadRequest, "quorum_required ve approval_threshold 0-100 arası olmalı")
		}

		userID, userName, err := getUserInfo(c)
		if err != nil {
			return err
		}

		proposal := models.Proposal{
			CooperativeID:     coopID,
			Type:              pType,
			Title:             body.Title,
			Description:       body.Description,
			QuorumRequired:    body.QuorumRequired,
			ApprovalThreshold: body.ApprovalThreshold,
			Status:            models.ProposalStatusDraft,
			CreatedBy:         userID,
		}

		if body.VotingOpens != nil {
			t, err := parseDateTime(*body.VotingOpens)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "voting_opens tarih formatı geçersiz")
			}
			proposal.VotingOpens = &t
		}
		if body.VotingCloses != nil {
			t, err := parseDateTime(*body.VotingCloses)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "voting_closes tarih formatı geçersiz")
			}
			proposal.VotingCloses = &t
		}
		// Pencere kuralı oluşturma anında uygulanır: opens ≤ closes
		if proposal.VotingOpens != nil && proposal.VotingCloses != nil &&
			proposal.VotingCloses.Before(*proposal.VotingOpens) {
			return fiber.NewError(fiber.StatusBadRequest, "voting_closes voting_opens'tan önce olamaz")
		}

		if err := database.DB.Create(&proposal).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Öneri oluşturulamadı")
		}

		_ = audit.WriteLog(database.DB, audit.LogOptions{
			CooperativeID: &coopID,
			UserID:        userID,
			UserName:      userName,
			EntityType:    "proposal",
			EntityID:      proposal.ID,
			Action:        models.AuditActionCreate,
			Description:   "Öneri oluşturuldu: " + proposal.Title,
			After:         proposal,
		})

		return c.Status(fiber.StatusCreated).JSON(toProposalResponse(&proposal))
	}
}

// -------------------------------------------------
// GET /api/proposals?status=open
// -------------------------------------------------
func ListProposalsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		coopID, err := resolveCoopIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		q := database.DB.Where("cooperative_id = ?", coopID)
		if st := c.Query("status"); st != "" {
			q = q.Where("status = ?", st)
		}

		var proposals []models.Proposal
		if err := q.Order("created_at DESC").Find(&proposals).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Öneriler listelenemedi")
		}

		res := make([]ProposalResponse, 0, len(proposals))
		for i := range proposals {
			res = append(res, toProposalResponse(&proposals[i]))
		}
		return c.JSON(res)
	}
}

// -------------------------------------------------
// GET /api/proposals/:id
// -------------------------------------------------
func GetProposalHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		proposal, _, err := loadProposal(c)
		if err != nil {
			return err
		}

		// Süresi dolmuş açık öneri ilk okunuşta kapanır
		if err := CloseIfExpired(database.DB, proposal, time.Now()); err != nil {
			return domainError(err)
		}

		return c.JSON(toProposalResponse(proposal))
	}
}

// -------------------------------------------------
// PUT /api/proposals/:id  (sadece taslak)
// -------------------------------------------------
func UpdateProposalHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		proposal, coopID, err := loadProposal(c)
		if err != nil {
			return err
		}

		// Çekirdek alanlar açıldıktan sonra değiştirilemez
		if proposal.Status != models.ProposalStatusDraft {
			return fiber.NewError(fiber.StatusConflict, "Sadece taslak öneri düzenlenebilir")
		}

		var body UpdateProposalRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		before := *proposal

		if body.Type != nil {
			pType, ok := parseProposalType(*body.Type)
			if !ok {
				return fiber.NewError(fiber.StatusBadRequest, "type geçersiz")
			}
			proposal.Type = pType
		}
		if body.Title != nil {
			if *body.Title == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Başlık boş olamaz")
			}
			proposal.Title = *body.Title
		}
		if body.Description != nil {
			proposal.Description = *body.Description
		}
		if body.VotingOpens != nil {
			t, err := parseDateTime(*body.VotingOpens)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "voting_opens tarih formatı geçersiz")
			}
			proposal.VotingOpens = &t
		}
		if body.VotingCloses != nil {
			t, err := parseDateTime(*body.VotingCloses)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "voting_closes tarih formatı geçersiz")
			}
			proposal.VotingCloses = &t
		}
		if proposal.VotingOpens != nil && proposal.VotingCloses != nil &&
			proposal.VotingCloses.Before(*proposal.VotingOpens) {
			return fiber.NewError(fiber.StatusBadRequest, "voting_closes voting_opens'tan önce olamaz")
		}
		if body.QuorumRequired != nil {
			if !validPercent(*body.QuorumRequired) {
				return fiber.NewError(fiber.StatusBadRequest, "quorum_required 0-100 arası olmalı")
			}
			proposal.QuorumRequired = *body.QuorumRequired
		}
		if body.ApprovalThreshold != nil {
			if !validPercent(*body.ApprovalThreshold) {
				return fiber.NewError(fiber.StatusBadRequest, "approval_threshold 0-100 arası olmalı")
			}
			proposal.ApprovalThreshold = *body.ApprovalThreshold
		}

		if err := database.DB.Save(proposal).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Öneri güncellenemedi")
		}

		userID, userName, _ := getUserInfo(c)
		_ = audit.WriteLog(database.DB, audit.LogOptions{
			CooperativeID: &coopID,
			UserID:        userID,
			UserName:      userName,
			EntityType:    "proposal",
			EntityID:      proposal.ID,
			Action:        models.AuditActionUpdate,
			Description:   "Öneri güncellendi: " + proposal.Title,
			Before:        before,
			After:         proposal,
		})

		return c.JSON(toProposalResponse(proposal))
	}
}

// -------------------------------------------------
// POST /api/proposals/:id/votes
// member kendi adına, coop_admin member_id vererek oy işler
// -------------------------------------------------
func CastVoteHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		proposal, coopID, err := loadProposal(c)
		if err != nil {
			return err
		}

		var body CastVoteRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		choice, ok := parseVoteChoice(body.Choice)
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "choice 'yes', 'no' veya 'abstain' olmalı")
		}

		role, _ := c.Locals(auth.CtxUserRoleKey).(models.UserRole)
		var memberID uint
		if role == models.RoleMember {
			mPtr, ok := c.Locals(auth.CtxMemberIDKey).(*uint)
			if !ok || mPtr == nil {
				return fiber.NewError(fiber.StatusForbidden, "Kullanıcıya bağlı üye kaydı yok")
			}
			memberID = *mPtr
		} else {
			if body.MemberID == nil {
				return fiber.NewError(fiber.StatusBadRequest, "member_id zorunlu")
			}
			memberID = *body.MemberID
		}

		var member models.Member
		if err := database.DB.First(&member, "id = ? AND cooperative_id = ?", memberID, coopID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Üye bulunamadı")
		}

		now := time.Now()
		vote, err := CastVote(database.DB, proposal, &member, choice, body.Comment, now)
		if err != nil {
			return domainError(err)
		}

		userID, userName, _ := getUserInfo(c)
		_ = audit.WriteLog(database.DB, audit.LogOptions{
			CooperativeID: &coopID,
			UserID:        userID,
			UserName:      userName,
			EntityType:    "proposal",
			EntityID:      proposal.ID,
			Action:        models.AuditActionVote,
			Description:   fmt.Sprintf("Oy işlendi (üye %d): %s", member.ID, choice),
		})

		return c.Status(fiber.StatusCreated).JSON(VoteResponse{
			ID:         vote.ID,
			ProposalID: vote.ProposalID,
			MemberID:   vote.MemberID,
			Choice:     string(vote.Choice),
			Comment:    vote.Comment,
			CastAt:     vote.CastAt.Format(time.RFC3339),
		})
	}
}

// -------------------------------------------------
// GET /api/proposals/:id/votes
// -------------------------------------------------
func ListVotesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		proposal, _, err := loadProposal(c)
		if err != nil {
			return err
		}

		var votes []models.Vote
		if err := database.DB.Where("proposal_id = ?", proposal.ID).Order("cast_at asc").Find(&votes).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Oylar listelenemedi")
		}

		res := make([]VoteResponse, 0, len(votes))
		for _, v := range votes {
			res = append(res, VoteResponse{
				ID:         v.ID,
				ProposalID: v.ProposalID,
				MemberID:   v.MemberID,
				Choice:     string(v.Choice),
				Comment:    v.Comment,
				CastAt:     v.CastAt.Format(time.RFC3339),
			})
		}
		return c.JSON(res)
	}
}

// -------------------------------------------------
// GET /api/proposals/:id/result
// -------------------------------------------------
func ResolveProposalHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		proposal, _, err := loadProposal(c)
		if err != nil {
			return err
		}

		now := time.Now()
		if err := CloseIfExpired(database.DB, proposal, now); err != nil {
			return domainError(err)
		}

		result, binding, err := Resolve(database.DB, proposal, now)
		if err != nil {
			return domainError(err)
		}

		return c.JSON(toResultResponse(result, binding))
	}
}

// -------------------------------------------------
// POST /api/proposals/:id/transition  {"action": "open" | "close" | "cancel"}
// -------------------------------------------------
func TransitionProposalHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		proposal, coopID, err := loadProposal(c)
		if err != nil {
			return err
		}

		var body TransitionRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		before := proposal.Status
		if err := Transition(database.DB, proposal, TransitionAction(body.Action), time.Now()); err != nil {
			return domainError(err)
		}

		userID, userName, _ := getUserInfo(c)
		_ = audit.WriteLog(database.DB, audit.LogOptions{
			CooperativeID: &coopID,
			UserID:        userID,
			UserName:      userName,
			EntityType:    "proposal",
			EntityID:      proposal.ID,
			Action:        models.AuditActionTransition,
			Description:   fmt.Sprintf("Öneri durumu: %s → %s", before, proposal.Status),
		})

		return c.JSON(toProposalResponse(proposal))
	}
}
