package invoices

const (
	TopicInvoiceCreated   = "invoice.created"
	TopicInvoiceStatus    = "invoice.status"
	TopicInvoiceCancelled = "invoice.cancelled"
)

// Partition key = invoice_id, supaya semua event 1 invoice maintain urutan.
func PartitionKey(invoiceID string) []byte { return []byte(invoiceID) }
