package policy

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultTimeoutHours dipakai saat belum ada policy tersimpan.
const DefaultTimeoutHours = 48.0

var ErrInvalidTimeout = errors.New("timeout hours must be positive")

// Store menyimpan policy batas waktu pembayaran sebagai config versioned:
// set menambah baris baru, baris terakhir yang berlaku. Sweeper baca fresh
// tiap tick, jadi perubahan berlaku mulai sweep berikutnya.
type Store struct{ DB *pgxpool.Pool }

func (s *Store) CurrentTimeoutHours(ctx context.Context) (float64, error) {
	var hours float64
	err := s.DB.QueryRow(ctx,
		`SELECT timeout_hours FROM cancellation_policies ORDER BY id DESC LIMIT 1`).Scan(&hours)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultTimeoutHours, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read timeout policy: %w", err)
	}
	return hours, nil
}

func (s *Store) SetGlobalTimeout(ctx context.Context, hours float64) error {
	hours = RoundHours(hours)
	if hours <= 0 {
		return ErrInvalidTimeout
	}
	_, err := s.DB.Exec(ctx,
		`INSERT INTO cancellation_policies(timeout_hours) VALUES ($1)`, hours)
	if err != nil {
		return fmt.Errorf("store timeout policy: %w", err)
	}
	return nil
}

// RoundHours membulatkan ke 2 desimal, sama dengan presisi kolomnya.
func RoundHours(hours float64) float64 {
	return math.Round(hours*100) / 100
}
