package invoices

// Status adalah state kanonik lifecycle invoice. Label tampilan per channel
// di-mapping lewat DisplayLabel / CanonicalStatus, bukan disimpan mentah.
type Status string

const (
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusConfirmed       Status = "confirmed"
	StatusProcessing      Status = "processing"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
)

// Channel = jalur fulfillment order.
type Channel string

const (
	ChannelPickup   Channel = "pickup"
	ChannelDelivery Channel = "delivery"
	ChannelInStore  Channel = "in-store"
)

func ValidChannel(c Channel) bool {
	switch c {
	case ChannelPickup, ChannelDelivery, ChannelInStore:
		return true
	}
	return false
}

func ValidStatus(s Status) bool {
	switch s {
	case StatusAwaitingPayment, StatusConfirmed, StatusProcessing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// forwardNext: jalur linear maju; cancel ditangani terpisah di CanTransition.
var forwardNext = map[Status]Status{
	StatusAwaitingPayment: StatusConfirmed,
	StatusConfirmed:       StatusProcessing,
	StatusProcessing:      StatusCompleted,
}

// rank dipakai untuk deteksi skip (cashier/owner boleh loncat maju).
var rank = map[Status]int{
	StatusAwaitingPayment: 0,
	StatusConfirmed:       1,
	StatusProcessing:      2,
	StatusCompleted:       3,
}

func Terminal(s Status) bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition memutuskan apakah from->to diizinkan.
// - keluar dari terminal: tidak pernah.
// - cancelled: boleh dari semua state non-terminal, siapa pun aktornya.
// - jalur default linear maju satu langkah; skip hanya untuk aktor privileged.
func CanTransition(from, to Status, privileged bool) bool {
	if Terminal(from) {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	next, ok := forwardNext[from]
	if !ok {
		return false
	}
	if next == to {
		return true
	}
	if privileged {
		return rank[to] > rank[from]
	}
	return false
}

// DisplayLabel: label status per channel untuk UI/struk. Intermediate state
// "processing" punya vocab sendiri per jalur ("dikirim" vs "siap_diambil").
func DisplayLabel(ch Channel, s Status) string {
	if s == StatusProcessing {
		switch ch {
		case ChannelDelivery:
			return "dikirim"
		case ChannelPickup:
			return "siap_diambil"
		}
	}
	return string(s)
}

// legacyLabels: string status lawas dari sistem lama -> state kanonik.
var legacyLabels = map[string]Status{
	"belum_bayar":      StatusAwaitingPayment,
	"sudah_bayar":      StatusConfirmed,
	"sedang_proses":    StatusProcessing,
	"dikirim":          StatusProcessing,
	"siap_diambil":     StatusProcessing,
	"selesai":          StatusCompleted,
	"dibatalkan":       StatusCancelled,
	"awaiting_payment": StatusAwaitingPayment,
	"confirmed":        StatusConfirmed,
	"processing":       StatusProcessing,
	"completed":        StatusCompleted,
	"cancelled":        StatusCancelled,
}

// CanonicalStatus menerjemahkan label bebas (legacy maupun kanonik) ke Status.
func CanonicalStatus(label string) (Status, bool) {
	s, ok := legacyLabels[label]
	return s, ok
}

// ReplayHistory memvalidasi rantai status log suatu invoice: mulai dari
// awaiting_payment, tiap langkah transisi valid (privileged diasumsikan true
// karena log bisa berisi skip oleh kasir), tanpa dua state berurutan yang sama.
// Mengembalikan status akhir hasil replay.
func ReplayHistory(logs []StatusLog) (Status, bool) {
	if len(logs) == 0 {
		return "", false
	}
	if logs[0].PrevStatus != nil || logs[0].NewStatus != StatusAwaitingPayment {
		return "", false
	}
	cur := logs[0].NewStatus
	for _, l := range logs[1:] {
		if l.PrevStatus == nil || *l.PrevStatus != cur {
			return "", false
		}
		if l.NewStatus == cur {
			return "", false
		}
		if !CanTransition(cur, l.NewStatus, true) {
			return "", false
		}
		cur = l.NewStatus
	}
	return cur, true
}
