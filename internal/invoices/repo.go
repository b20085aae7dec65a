package invoices

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/toko-order-engine.git/internal/inventory"
)

type ItemInput struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type CreateInvoiceInput struct {
	ExternalID    string
	CustomerID    *string
	CustomerName  string
	CustomerPhone string
	Channel       Channel
	PaymentOption string
	CashierID     *string
	Items         []ItemInput
}

type CreateInvoiceResult struct {
	InvoiceID string
	Total     int64
	Existed   bool
}

// Repo adalah source of truth state order yang sudah committed. Semua operasi
// multi-step jalan dalam satu transaksi; reservasi stok lewat Ledger dengan
// tx yang sama supaya invoice + detail + stok terlihat bersama atau tidak
// sama sekali.
type Repo struct {
	DB     *pgxpool.Pool
	Ledger *inventory.Ledger
}

// CreateInvoice: idempotent via external_id (kalau diisi).
// Reservasi per item lewat Ledger.Reserve; satu item kurang stok ->
// rollback seluruh tx, reservasi item sebelumnya ikut batal.
func (r *Repo) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (CreateInvoiceResult, error) {
	if len(in.Items) == 0 {
		return CreateInvoiceResult{}, ErrEmptyOrder
	}
	for _, it := range in.Items {
		if it.Qty <= 0 {
			return CreateInvoiceResult{}, fmt.Errorf("invalid qty for product %s", it.ProductID)
		}
	}
	if !ValidChannel(in.Channel) {
		return CreateInvoiceResult{}, fmt.Errorf("invalid channel: %s", in.Channel)
	}

	// cek existing by external_id
	if in.ExternalID != "" {
		var id string
		var total int64
		err := r.DB.QueryRow(ctx,
			`SELECT id, total FROM invoices WHERE external_id=$1`, in.ExternalID).Scan(&id, &total)
		if err == nil {
			return CreateInvoiceResult{InvoiceID: id, Total: total, Existed: true}, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return CreateInvoiceResult{}, err
		}
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return CreateInvoiceResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// lock product selalu urut id biar dua checkout barengan nggak deadlock
	items := make([]ItemInput, len(in.Items))
	copy(items, in.Items)
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	type snapshot struct {
		name, image, unit string
		price             int64
	}
	snaps := make(map[string]snapshot, len(items))
	var total int64
	for _, it := range items {
		if err := r.Ledger.Reserve(ctx, tx, it.ProductID, it.Qty); err != nil {
			return CreateInvoiceResult{}, err
		}
		// row sudah ke-lock oleh Reserve; baca snapshot katalog di sini
		var s snapshot
		err := tx.QueryRow(ctx,
			`SELECT name, image_ref, unit, price FROM products WHERE id=$1`, it.ProductID).
			Scan(&s.name, &s.image, &s.unit, &s.price)
		if err != nil {
			return CreateInvoiceResult{}, fmt.Errorf("snapshot product %s: %w", it.ProductID, err)
		}
		snaps[it.ProductID] = s
		total += s.price * int64(it.Qty)
	}

	invoiceID := uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO invoices(id, external_id, customer_id, customer_name, customer_phone,
		                     channel, payment_option, cashier_id, status, total)
		VALUES ($1, NULLIF($2,''), $3, $4, $5, $6, $7, $8, $9, $10)`,
		invoiceID, in.ExternalID, in.CustomerID, in.CustomerName, in.CustomerPhone,
		in.Channel, in.PaymentOption, in.CashierID, StatusAwaitingPayment, total)
	if err != nil {
		return CreateInvoiceResult{}, err
	}

	for _, it := range items {
		s := snaps[it.ProductID]
		_, err = tx.Exec(ctx, `
			INSERT INTO invoice_details(invoice_id, product_id, product_name, image_ref, unit, qty, price)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			invoiceID, it.ProductID, s.name, s.image, s.unit, it.Qty, s.price)
		if err != nil {
			return CreateInvoiceResult{}, err
		}
	}

	// log awal: prev NULL -> awaiting_payment
	actor := Actor{Role: RoleCustomer, Name: in.CustomerName}
	if in.CashierID != nil {
		actor = Actor{Role: RoleCashier, Name: *in.CashierID}
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_logs(invoice_id, channel, prev_status, new_status, actor)
		VALUES ($1,$2,NULL,$3,$4)`,
		invoiceID, in.Channel, StatusAwaitingPayment, actor.String())
	if err != nil {
		return CreateInvoiceResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return CreateInvoiceResult{}, err
	}
	return CreateInvoiceResult{InvoiceID: invoiceID, Total: total}, nil
}

// SubmitPayment menambah baris payment; baris lama tidak pernah diubah,
// "lunas" dihitung dari SUM(amount). Invoice yang sudah dibatalkan menolak
// pembayaran baru supaya jumlah pembayaran berhenti bergerak setelah cancel.
func (r *Repo) SubmitPayment(ctx context.Context, invoiceID string, amount int64, proofRef string) error {
	if amount <= 0 {
		return fmt.Errorf("payment amount must be positive, got %d", amount)
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status Status
	err = tx.QueryRow(ctx, `SELECT status FROM invoices WHERE id=$1 FOR UPDATE`, invoiceID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrInvoiceNotFound
	}
	if err != nil {
		return err
	}
	if status == StatusCancelled {
		return ErrAlreadyCancelled
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO payments(invoice_id, amount, proof_ref) VALUES ($1,$2,$3)`,
		invoiceID, amount, proofRef)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repo) GetInvoice(ctx context.Context, invoiceID string) (Invoice, error) {
	var inv Invoice
	err := r.DB.QueryRow(ctx, `
		SELECT id, COALESCE(external_id,''), customer_id, customer_name, customer_phone,
		       channel, payment_option, cashier_id, status, total, created_at
		FROM invoices WHERE id=$1`, invoiceID).
		Scan(&inv.ID, &inv.ExternalID, &inv.CustomerID, &inv.CustomerName, &inv.CustomerPhone,
			&inv.Channel, &inv.PaymentOption, &inv.CashierID, &inv.Status, &inv.Total, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, err
}

func (r *Repo) Details(ctx context.Context, invoiceID string) ([]InvoiceDetail, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, invoice_id, product_id, product_name, image_ref, unit, qty, price
		FROM invoice_details WHERE invoice_id=$1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InvoiceDetail
	for rows.Next() {
		var d InvoiceDetail
		if err := rows.Scan(&d.ID, &d.InvoiceID, &d.ProductID, &d.ProductName, &d.ImageRef, &d.Unit, &d.Qty, &d.Price); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// PaymentsTotal = SUM semua payment (bukan cuma yang terakhir).
func (r *Repo) PaymentsTotal(ctx context.Context, invoiceID string) (int64, error) {
	var sum int64
	err := r.DB.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount),0) FROM payments WHERE invoice_id=$1`, invoiceID).Scan(&sum)
	return sum, err
}

// History mengembalikan status log terurut seq; replay-nya harus menghasilkan
// status invoice sekarang.
func (r *Repo) History(ctx context.Context, invoiceID string) ([]StatusLog, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT seq, invoice_id, channel, prev_status, new_status, actor, created_at
		FROM order_status_logs WHERE invoice_id=$1 ORDER BY seq`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusLog
	for rows.Next() {
		var l StatusLog
		if err := rows.Scan(&l.Seq, &l.InvoiceID, &l.Channel, &l.PrevStatus, &l.NewStatus, &l.Actor, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		// invoice tanpa log = invoice tidak ada (log awal dibuat saat create)
		return nil, ErrInvoiceNotFound
	}
	return out, nil
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, image_ref, unit, price, stock, created_at, updated_at
		FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.ImageRef, &p.Unit, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
