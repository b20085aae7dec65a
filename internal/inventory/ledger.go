package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InsufficientStockError: rejection bisnis saat reservasi. Satu product yang
// kurang sudah cukup menggagalkan seluruh order (rollback penuh).
type InsufficientStockError struct {
	ProductID string
	Required  int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: need %d, have %d",
		e.ProductID, e.Required, e.Available)
}

// Ledger memegang counter stok per product. Reserve/Release jalan di dalam
// transaksi caller supaya reservasi seluruh line item satu order jadi satu
// unit atomik; lock-nya per row product (FOR UPDATE), bukan lock global,
// jadi checkout product berbeda tidak saling menunggu.
type Ledger struct{ DB *pgxpool.Pool }

// Reserve: cek-dan-kurangi dalam satu langkah di bawah row lock.
// stock < qty -> InsufficientStockError, dan caller wajib rollback tx-nya
// (reservasi item sebelumnya di request yang sama ikut batal).
func (l *Ledger) Reserve(ctx context.Context, tx pgx.Tx, productID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("reserve %s: qty must be positive, got %d", productID, qty)
	}
	var stock int
	err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 FOR UPDATE`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("reserve: product not found: %s", productID)
	}
	if err != nil {
		return fmt.Errorf("reserve %s: %w", productID, err)
	}
	if stock < qty {
		return &InsufficientStockError{ProductID: productID, Required: qty, Available: stock}
	}
	_, err = tx.Exec(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = now() WHERE id=$1`,
		productID, qty)
	if err != nil {
		return fmt.Errorf("reserve %s: %w", productID, err)
	}
	return nil
}

// Release mengembalikan stok tanpa batas atas; maksimum katalog bukan urusan
// ledger. Dipanggil hanya dari jalur pembatalan, di tx yang sama dengan
// update status invoice.
func (l *Ledger) Release(ctx context.Context, tx pgx.Tx, productID string, qty int) error {
	_, err := tx.Exec(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`,
		productID, qty)
	if err != nil {
		return fmt.Errorf("release %s: %w", productID, err)
	}
	return nil
}

// Stock membaca stok saat ini (di luar tx, untuk katalog/monitoring).
func (l *Ledger) Stock(ctx context.Context, productID string) (int, error) {
	var stock int
	err := l.DB.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("stock: product not found: %s", productID)
	}
	return stock, err
}
