package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProposalType string

const (
	ProposalTypeGeneral   ProposalType = "general"
	ProposalTypeFinancial ProposalType = "financial"  // bütçe, harcama, dağıtım onayı
	ProposalTypeBylaw     ProposalType = "bylaw"      // tüzük değişikliği
	ProposalTypeElection  ProposalType = "election"   // yönetim seçimi
	ProposalTypeRoute     ProposalType = "route"      // hat/güzergah kararı
)

type ProposalStatus string

const (
	ProposalStatusDraft     ProposalStatus = "draft"
	ProposalStatusOpen      ProposalStatus = "open"
	ProposalStatusPassed    ProposalStatus = "passed"
	ProposalStatusFailed    ProposalStatus = "failed"
	ProposalStatusCancelled ProposalStatus = "cancelled"
)

// Proposal: kooperatif genel kurul / yönetim önergesi.
// Çekirdek alanlar (tarihler, eşikler) sadece draft durumunda değiştirilebilir.
type Proposal struct {
	ID            uint `gorm:"primaryKey"`
	CooperativeID uint `gorm:"index;not null"`
	Cooperative   Cooperative

	Type        ProposalType `gorm:"size:20;not null"`
	Title       string       `gorm:"size:200;not null"`
	Description string       `gorm:"size:2000"`

	// Oylama penceresi; açılmadan önce ikisi de set edilmiş olmalı
	VotingOpens  *time.Time
	VotingCloses *time.Time

	// Yüzde cinsinden (0-100)
	QuorumRequired    decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"` // katılım yeter sayısı
	ApprovalThreshold decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"` // kabul eşiği (çekimserler hariç)

	Status ProposalStatus `gorm:"size:20;not null;default:draft;index"`

	CreatedBy uint `gorm:"not null"` // öneriyi oluşturan kullanıcı

	CreatedAt time.Time
	UpdatedAt time.Time
}

type VoteChoice string

const (
	VoteChoiceYes     VoteChoice = "yes"
	VoteChoiceNo      VoteChoice = "no"
	VoteChoiceAbstain VoteChoice = "abstain"
)

// Vote: (proposal, member) başına tek kayıt; tekrar oy kullanmak
// öncekinin üzerine yazar (upsert), asla ikinci satır oluşturmaz.
type Vote struct {
	ID         uint `gorm:"primaryKey"`
	ProposalID uint `gorm:"not null;uniqueIndex:idx_votes_proposal_member"`
	Proposal   Proposal
	MemberID   uint `gorm:"not null;uniqueIndex:idx_votes_proposal_member"`
	Member     Member

	Choice  VoteChoice `gorm:"size:10;not null"`
	Comment string     `gorm:"size:500"` // opsiyonel gerekçe
	CastAt  time.Time  `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProposalResult: kapanış anında bir kez hesaplanıp saklanan bağlayıcı sonuç.
// Öneri açıkken aynı hesap geçici (provisional) okuma olarak da döner ama
// o halde kaydedilmez.
type ProposalResult struct {
	ID         uint `gorm:"primaryKey"`
	ProposalID uint `gorm:"uniqueIndex;not null"`
	Proposal   Proposal

	YesCount     int `gorm:"not null"`
	NoCount      int `gorm:"not null"`
	AbstainCount int `gorm:"not null"`
	TotalVotes   int `gorm:"not null"`

	// Çözümleme anındaki aktif + oy haklı üye sayısı
	EligibleVoters int `gorm:"not null"`

	TurnoutPercentage  decimal.Decimal `gorm:"type:decimal(8,4);not null"`
	ApprovalPercentage decimal.Decimal `gorm:"type:decimal(8,4);not null"`

	QuorumMet bool `gorm:"not null"`
	Approved  bool `gorm:"not null"`

	ResolvedAt time.Time `gorm:"not null"`
	CreatedAt  time.Time
}
