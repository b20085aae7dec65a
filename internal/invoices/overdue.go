package invoices

import (
	"context"
	"time"
)

// Overdue mengembalikan id invoice awaiting_payment yang dibuat sebelum
// cutoff. Dipakai sweeper deadline pembayaran; antara query ini dan
// Transition, invoice bisa saja keburu dibayar — itu race yang diharapkan
// dan ditangani di sisi pemanggil.
func (r *Repo) Overdue(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id FROM invoices
		WHERE status=$1 AND created_at < $2
		ORDER BY created_at`, StatusAwaitingPayment, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
