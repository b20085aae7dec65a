package invoices

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/toko-order-engine.git/internal/inventory"
)

// Test terhadap Postgres beneran; jalan hanya kalau TEST_POSTGRES_DSN diisi.
// Properti konkurensi (no-oversell, release exactly-once) butuh row lock
// asli, bukan fake.

func setupRepo(t *testing.T) *Repo {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile(filepath.Join("..", "..", "migrations", "001_init.sql"))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)

	return &Repo{DB: pool, Ledger: &inventory.Ledger{DB: pool}}
}

func seedProduct(t *testing.T, r *Repo, stock int, price int64) string {
	t.Helper()
	id := "prod-" + uuid.NewString()
	_, err := r.DB.Exec(context.Background(), `
		INSERT INTO products(id, name, image_ref, unit, price, stock)
		VALUES ($1, $2, '', 'pcs', $3, $4)`,
		id, "Produk "+id[:13], price, stock)
	require.NoError(t, err)
	return id
}

func orderInput(items ...ItemInput) CreateInvoiceInput {
	return CreateInvoiceInput{
		CustomerName:  "Budi",
		CustomerPhone: "0812000000",
		Channel:       ChannelPickup,
		PaymentOption: "transfer",
		Items:         items,
	}
}

func currentStock(t *testing.T, r *Repo, productID string) int {
	t.Helper()
	stock, err := r.Ledger.Stock(context.Background(), productID)
	require.NoError(t, err)
	return stock
}

func TestCreateInvoice_ConcurrentNoOversell(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	pid := seedProduct(t, r, 5, 10000)

	// dua checkout qty 3 barengan; stok 5 -> tepat satu yang dapat
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.CreateInvoice(ctx, orderInput(ItemInput{ProductID: pid, Qty: 3}))
		}(i)
	}
	wg.Wait()

	var stockErrs int
	for _, err := range errs {
		if err != nil {
			var se *inventory.InsufficientStockError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, pid, se.ProductID)
			stockErrs++
		}
	}
	assert.Equal(t, 1, stockErrs, "tepat satu checkout ditolak")
	assert.Equal(t, 2, currentStock(t, r, pid))
}

func TestCreateInvoice_SwarmNeverOversells(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	const stock = 5
	pid := seedProduct(t, r, stock, 1000)

	// 6 reservasi qty 1 pada stok 5: minimal satu harus ditolak
	const n = stock + 1
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.CreateInvoice(ctx, orderInput(ItemInput{ProductID: pid, Qty: 1}))
		}(i)
	}
	wg.Wait()

	var rejected int
	for _, err := range errs {
		if err != nil {
			var se *inventory.InsufficientStockError
			require.ErrorAs(t, err, &se)
			rejected++
		}
	}
	assert.GreaterOrEqual(t, rejected, 1)
	assert.Equal(t, stock-(n-rejected), currentStock(t, r, pid))
	assert.GreaterOrEqual(t, currentStock(t, r, pid), 0)
}

func TestCreateInvoice_PartialShortageRollsBackEverything(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	pOK := seedProduct(t, r, 10, 1000)
	pShort := seedProduct(t, r, 1, 2000)

	_, err := r.CreateInvoice(ctx, orderInput(
		ItemInput{ProductID: pOK, Qty: 2},
		ItemInput{ProductID: pShort, Qty: 5},
	))
	var se *inventory.InsufficientStockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, pShort, se.ProductID)

	// reservasi item pertama ikut batal, tidak ada yang bocor
	assert.Equal(t, 10, currentStock(t, r, pOK))
	assert.Equal(t, 1, currentStock(t, r, pShort))
}

func TestCancel_RacingCallsReleaseOnce(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	pid := seedProduct(t, r, 10, 1000)

	res, err := r.CreateInvoice(ctx, orderInput(ItemInput{ProductID: pid, Qty: 3}))
	require.NoError(t, err)
	require.Equal(t, 7, currentStock(t, r, pid))

	actor := Actor{Role: RoleCustomer, Name: "Budi"}
	const n = 4
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = r.CancelInvoice(ctx, res.InvoiceID, "berubah pikiran", actor)
		}(i)
	}
	wg.Wait()

	var ok, already int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyCancelled):
			already++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok, "tepat satu cancel menang")
	assert.Equal(t, n-1, already)
	// stok kembali persis sekali, bukan dobel
	assert.Equal(t, 10, currentStock(t, r, pid))

	// record pembatalan tepat satu
	var cnt int
	require.NoError(t, r.DB.QueryRow(ctx,
		`SELECT COUNT(*) FROM cancelled_transactions WHERE invoice_id=$1`, res.InvoiceID).Scan(&cnt))
	assert.Equal(t, 1, cnt)
}

func TestSnapshotPrice_ImmuneToCatalogEdits(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	pid := seedProduct(t, r, 10, 10000)

	res, err := r.CreateInvoice(ctx, orderInput(ItemInput{ProductID: pid, Qty: 2}))
	require.NoError(t, err)
	require.Equal(t, int64(20000), res.Total)

	// katalog naik harga setelah order dibuat
	_, err = r.DB.Exec(ctx, `UPDATE products SET price=99999 WHERE id=$1`, pid)
	require.NoError(t, err)

	details, err := r.Details(ctx, res.InvoiceID)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, int64(10000), details[0].Price)

	inv, err := r.GetInvoice(ctx, res.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), inv.Total)
}

func TestPaymentFlow_CumulativeSumGatesConfirm(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	p1 := seedProduct(t, r, 10, 10000)
	p2 := seedProduct(t, r, 10, 5000)

	res, err := r.CreateInvoice(ctx, orderInput(
		ItemInput{ProductID: p1, Qty: 3},
		ItemInput{ProductID: p2, Qty: 1},
	))
	require.NoError(t, err)
	require.Equal(t, int64(35000), res.Total)

	kasir := Actor{Role: RoleCashier, Name: "kasir-1"}

	// 20000 dari 35000: belum lunas
	require.NoError(t, r.SubmitPayment(ctx, res.InvoiceID, 20000, "blob://bukti-1"))
	err = r.Transition(ctx, res.InvoiceID, StatusConfirmed, kasir, "")
	require.ErrorIs(t, err, ErrPaymentIncomplete)

	// kumulatif 35000: lunas
	require.NoError(t, r.SubmitPayment(ctx, res.InvoiceID, 15000, "blob://bukti-2"))
	require.NoError(t, r.Transition(ctx, res.InvoiceID, StatusConfirmed, kasir, ""))

	sum, err := r.PaymentsTotal(ctx, res.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, int64(35000), sum)

	// lanjut sampai selesai; replay history harus sampai completed
	require.NoError(t, r.Transition(ctx, res.InvoiceID, StatusProcessing, kasir, ""))
	require.NoError(t, r.Transition(ctx, res.InvoiceID, StatusCompleted, kasir, ""))

	logs, err := r.History(ctx, res.InvoiceID)
	require.NoError(t, err)
	final, ok := ReplayHistory(logs)
	require.True(t, ok, "audit chain harus valid")
	assert.Equal(t, StatusCompleted, final)

	// terminal: transisi apa pun ditolak
	err = r.Transition(ctx, res.InvoiceID, StatusProcessing, kasir, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelledInvoice_KeepsPaymentsRejectsNew(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	pid := seedProduct(t, r, 10, 1000)

	res, err := r.CreateInvoice(ctx, orderInput(ItemInput{ProductID: pid, Qty: 1}))
	require.NoError(t, err)
	require.NoError(t, r.SubmitPayment(ctx, res.InvoiceID, 500, "blob://separo"))

	require.NoError(t, r.CancelInvoice(ctx, res.InvoiceID, "kadaluarsa", SystemTimeout))

	// payment lama tetap ada untuk audit/refund
	sum, err := r.PaymentsTotal(ctx, res.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), sum)

	// payment baru ditolak
	err = r.SubmitPayment(ctx, res.InvoiceID, 500, "blob://telat")
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
}

func TestOverdue_RespectsCutoff(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	pid := seedProduct(t, r, 10, 1000)

	res, err := r.CreateInvoice(ctx, orderInput(ItemInput{ProductID: pid, Qty: 1}))
	require.NoError(t, err)

	// mundurkan jam pembuatan 2 jam (manipulasi khusus test)
	_, err = r.DB.Exec(ctx,
		`UPDATE invoices SET created_at = created_at - interval '2 hours' WHERE id=$1`, res.InvoiceID)
	require.NoError(t, err)

	ids, err := r.Overdue(ctx, time.Now().Add(-1*time.Hour))
	require.NoError(t, err)
	assert.Contains(t, ids, res.InvoiceID)

	ids, err = r.Overdue(ctx, time.Now().Add(-3*time.Hour))
	require.NoError(t, err)
	assert.NotContains(t, ids, res.InvoiceID)

	// yang sudah dibatalkan tidak ikut daftar
	require.NoError(t, r.CancelInvoice(ctx, res.InvoiceID, "kadaluarsa", SystemTimeout))
	ids, err = r.Overdue(ctx, time.Now().Add(-1*time.Hour))
	require.NoError(t, err)
	assert.NotContains(t, ids, res.InvoiceID)
}

func TestCreateInvoice_IdempotentByExternalID(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	pid := seedProduct(t, r, 10, 1000)

	in := orderInput(ItemInput{ProductID: pid, Qty: 2})
	in.ExternalID = "ext-" + uuid.NewString()

	first, err := r.CreateInvoice(ctx, in)
	require.NoError(t, err)
	second, err := r.CreateInvoice(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.InvoiceID, second.InvoiceID)
	assert.True(t, second.Existed)
	// retry tidak boleh reserve dua kali
	assert.Equal(t, 8, currentStock(t, r, pid))
}
