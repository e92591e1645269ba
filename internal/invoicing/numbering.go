package invoicing

import "fmt"

// FormatInvoiceNumber renders an invoice number as INV-{year}-{sequence},
// sequence zero-padded to four digits.
func FormatInvoiceNumber(year int, sequence int64) string {
	return fmt.Sprintf("INV-%d-%04d", year, sequence)
}

// NextSequence returns the sequence to assign given the last allocated
// (year, sequence) pair. The sequence restarts at 1 when the year changes.
// Uniqueness under concurrent callers is the persistence layer's job; this
// only defines the formatting and rollover rule.
func NextSequence(lastYear int, lastSequence int64, nowYear int) int64 {
	if nowYear != lastYear {
		return 1
	}
	return lastSequence + 1
}
