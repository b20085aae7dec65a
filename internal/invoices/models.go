package invoices

import "time"

type Product struct {
	ID        string
	Name      string
	ImageRef  string
	Unit      string
	Price     int64
	Stock     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Invoice struct {
	ID            string
	ExternalID    string
	CustomerID    *string
	CustomerName  string
	CustomerPhone string
	Channel       Channel
	PaymentOption string
	CashierID     *string
	Status        Status
	Total         int64
	CreatedAt     time.Time
}

// InvoiceDetail menyimpan snapshot katalog saat order dibuat; edit katalog
// belakangan tidak boleh mengubah baris ini.
type InvoiceDetail struct {
	ID          int64
	InvoiceID   string
	ProductID   string
	ProductName string
	ImageRef    string
	Unit        string
	Qty         int
	Price       int64
}

type Payment struct {
	ID        int64
	InvoiceID string
	Amount    int64
	ProofRef  string
	PaidAt    time.Time
}

// StatusLog append-only; Seq monotonic, memberi urutan total per invoice.
type StatusLog struct {
	Seq        int64
	InvoiceID  string
	Channel    Channel
	PrevStatus *Status
	NewStatus  Status
	Actor      string
	CreatedAt  time.Time
}

type CancelledTransaction struct {
	InvoiceID   string
	Reason      string
	CancelledBy string
	CancelledAt time.Time
}
