package invoices

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Transition memvalidasi dan menerapkan perubahan status dalam satu transaksi.
// Row invoice di-lock FOR UPDATE, jadi percobaan transisi barengan untuk
// invoice yang sama tereksekusi berurutan: satu menang, sisanya melihat state
// sesudahnya dan dapat ErrInvalidTransition / ErrAlreadyCancelled.
//
// target cancelled: release stok semua line item + tulis cancelled_transactions
// + append status log — satu unit atomik. Kalau invoice sudah cancelled,
// return ErrAlreadyCancelled tanpa release ulang.
func (r *Repo) Transition(ctx context.Context, invoiceID string, target Status, actor Actor, reason string) error {
	if !ValidStatus(target) {
		return fmt.Errorf("%w: unknown target %q", ErrInvalidTransition, target)
	}
	if target == StatusAwaitingPayment {
		return fmt.Errorf("%w: cannot transition back to %s", ErrInvalidTransition, target)
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var from Status
	var channel Channel
	var total int64
	err = tx.QueryRow(ctx,
		`SELECT status, channel, total FROM invoices WHERE id=$1 FOR UPDATE`, invoiceID).
		Scan(&from, &channel, &total)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrInvoiceNotFound
	}
	if err != nil {
		return err
	}

	if from == StatusCancelled && target == StatusCancelled {
		return ErrAlreadyCancelled
	}
	if !CanTransition(from, target, actor.Privileged()) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, target)
	}

	if target == StatusConfirmed {
		var paid int64
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(SUM(amount),0) FROM payments WHERE invoice_id=$1`, invoiceID).
			Scan(&paid); err != nil {
			return err
		}
		if paid < total {
			return fmt.Errorf("%w: paid %d of %d", ErrPaymentIncomplete, paid, total)
		}
	}

	if target == StatusCancelled {
		if err := r.releaseAndRecordCancel(ctx, tx, invoiceID, reason, actor); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE invoices SET status=$2 WHERE id=$1`, invoiceID, target); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO order_status_logs(invoice_id, channel, prev_status, new_status, actor)
		VALUES ($1,$2,$3,$4,$5)`,
		invoiceID, channel, from, target, actor.String()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CancelInvoice = wrapper tipis Transition ke cancelled.
func (r *Repo) CancelInvoice(ctx context.Context, invoiceID, reason string, actor Actor) error {
	return r.Transition(ctx, invoiceID, StatusCancelled, actor, reason)
}

// releaseAndRecordCancel jalan di tx Transition, setelah row invoice
// ter-lock dan status dipastikan belum cancelled — release-nya exactly-once.
func (r *Repo) releaseAndRecordCancel(ctx context.Context, tx pgx.Tx, invoiceID, reason string, actor Actor) error {
	rows, err := tx.Query(ctx,
		`SELECT product_id, qty FROM invoice_details WHERE invoice_id=$1`, invoiceID)
	if err != nil {
		return err
	}
	type line struct {
		pid string
		qty int
	}
	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.pid, &l.qty); err != nil {
			rows.Close()
			return err
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, l := range lines {
		if err := r.Ledger.Release(ctx, tx, l.pid, l.qty); err != nil {
			return err
		}
	}

	if reason == "" {
		reason = "cancelled"
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO cancelled_transactions(invoice_id, reason, cancelled_by)
		VALUES ($1,$2,$3)`,
		invoiceID, reason, actor.String()); err != nil {
		return err
	}
	return nil
}
