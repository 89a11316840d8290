/*
receipt.go - Receipt and journal text rendering

PURPOSE:
  Renders the fixed-width receipt and journal text embedded in every
  transaction record. Rendering is a strategy so tenants can swap formats;
  the built-in TextRenderer produces a 40-column layout.

  The journal is the auditor's view: the receipt body plus staff, cart and
  type metadata. Both strings are frozen into the transaction at finalize
  and never re-rendered, including on republish.

SEE ALSO:
  - cart/finalizer.go: Invokes the renderer at BILL
*/
package pos

import (
	"fmt"
	"strings"
)

const receiptWidth = 40

// ReceiptRenderer produces the receipt and journal text for a transaction.
type ReceiptRenderer interface {
	Render(t *Transaction) (receiptText, journalText string)
}

// TextRenderer is the built-in 40-column plain-text renderer.
type TextRenderer struct {
	StoreName string
}

func (r *TextRenderer) Render(t *Transaction) (string, string) {
	var b strings.Builder

	name := r.StoreName
	if name == "" {
		name = t.StoreCode
	}
	center(&b, name)
	center(&b, fmt.Sprintf("Receipt No. %d", t.ReceiptNo))
	b.WriteString(strings.Repeat("-", receiptWidth) + "\n")

	for _, l := range t.LineItems {
		if l.IsCancelled {
			continue
		}
		row(&b, l.Description, l.Amount.StringFixed(2))
		if !l.Quantity.Equal(one) {
			b.WriteString(fmt.Sprintf("  %s x %s\n", l.Quantity.String(), l.UnitPrice.StringFixed(2)))
		}
		for _, d := range l.Discounts {
			row(&b, "  discount", "-"+d.AmountApplied.StringFixed(2))
		}
	}
	for _, d := range t.SubtotalDiscounts {
		row(&b, "Discount", "-"+d.AmountApplied.StringFixed(2))
	}

	b.WriteString(strings.Repeat("-", receiptWidth) + "\n")
	row(&b, "Subtotal", t.SubtotalAmount.StringFixed(2))
	for _, tax := range t.Taxes {
		if tax.TaxType == TaxExempt || tax.TaxAmount.IsZero() {
			continue
		}
		label := fmt.Sprintf("Tax %s (%s%%)", tax.TaxName, tax.Rate.String())
		row(&b, label, tax.TaxAmount.StringFixed(2))
	}
	row(&b, "Total", t.TotalAmount.StringFixed(2))
	for _, p := range t.Payments {
		row(&b, p.Description, p.DepositAmount.StringFixed(2))
	}
	if t.ChangeAmount.IsPositive() {
		row(&b, "Change", t.ChangeAmount.StringFixed(2))
	}

	b.WriteString(strings.Repeat("-", receiptWidth) + "\n")
	row(&b, "Tran No.", fmt.Sprintf("%d", t.TransactionNo))
	row(&b, "Date", t.GenerateDateTime.Format("2006-01-02 15:04:05"))

	receipt := b.String()

	var j strings.Builder
	j.WriteString(fmt.Sprintf("TENANT %s STORE %s TERM %d TYPE %d\n",
		t.TenantID, t.StoreCode, t.TerminalNo, t.TransactionType))
	j.WriteString(fmt.Sprintf("STAFF %s CART %s BIZDATE %s\n",
		t.StaffID, t.CartID, t.BusinessDate))
	if t.OriginTransactionNo != 0 {
		j.WriteString(fmt.Sprintf("ORIGIN TRAN %d\n", t.OriginTransactionNo))
	}
	j.WriteString(receipt)

	return receipt, j.String()
}

func center(b *strings.Builder, s string) {
	if len(s) >= receiptWidth {
		b.WriteString(s + "\n")
		return
	}
	pad := (receiptWidth - len(s)) / 2
	b.WriteString(strings.Repeat(" ", pad) + s + "\n")
}

func row(b *strings.Builder, label, value string) {
	gap := receiptWidth - len(label) - len(value)
	if gap < 1 {
		gap = 1
	}
	b.WriteString(label + strings.Repeat(" ", gap) + value + "\n")
}
