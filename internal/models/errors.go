package models

import "errors"

// Yönetişim ve dağıtım çekirdeğinin alan hataları. Handler katmanı
// errors.Is ile HTTP koduna çevirir; çekirdek fiber'a bağımlı değildir.
var (
	// Üye aktif değil veya oy hakkı yok
	ErrNotEligible = errors.New("üye oy kullanmaya uygun değil")
	// Öneri açık değil veya oylama penceresi dışında
	ErrVotingClosed = errors.New("oylama kapalı")
	// Yaşam döngüsünde izin verilmeyen geçiş
	ErrInvalidState = errors.New("geçersiz durum geçişi")
	// total_profit girilmeden hesaplama istendi
	ErrIncompleteFinancials = errors.New("dönem finansal verileri eksik")
	// Ödenmiş satır tekrar ödenmeye çalışıldı
	ErrAlreadyPaid = errors.New("dağıtım zaten ödenmiş")
)
