package redisx

import "time"

const (
	// Idempotency create invoice: idem:invoice:create:{external_id} -> invoice_id
	KeyIdemInvoiceCreate = "idem:invoice:create:%s"

	// Cache status invoice: invoice_status:{invoice_id} -> {"status":"...","label":"..."}
	KeyInvoiceStatus = "invoice_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
