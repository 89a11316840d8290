/*
seed.go - Demo data loader for development and demonstrations

PURPOSE:
  Populates master data and a ready-to-use terminal so a fresh database
  can process a sale immediately:

    - Item catalog with exclusive-, inclusive- and exempt-taxed items
    - Tax masters (standard 10% exclusive, reduced 8% inclusive, exempt)
    - Payment masters for cash (01) and cashless (11)
    - One opened terminal with a signed-in staff member

  The terminal's api key is minted fresh on every seed call and returned
  in the response.

USAGE VIA API:

	POST /api/v1/seed
	{"tenantId": "demo", "storeCode": "0001"}

NOTE:

	Seeding upserts; it never clears existing data. Only use in
	development and demo environments.

SEE ALSO:
  - handlers.go: The rest of the surface the seeded data feeds
*/
package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/pos-core/pos"
	"github.com/warp/pos-core/store"
	"github.com/warp/pos-core/terminal"
)

type SeedRequest struct {
	TenantID     string `json:"tenantId"`
	StoreCode    string `json:"storeCode"`
	BusinessDate string `json:"businessDate"`
}

// Seed loads the demo catalog and terminal.
// POST /api/v1/seed
func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	const op = "seed"
	var req SeedRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, op, err)
		return
	}
	if req.TenantID == "" || req.StoreCode == "" {
		writeError(w, op, pos.ErrInvalidRequest.WithDetail("tenantId and storeCode are required"))
		return
	}
	if req.BusinessDate == "" {
		req.BusinessDate = "20260101"
	}
	ctx := r.Context()

	taxes := []pos.TaxMaster{
		{TaxCode: "01", TaxName: "Standard 10%", TaxType: pos.TaxExclusive, Rate: decimal.NewFromInt(10), Rounding: pos.RoundFloor},
		{TaxCode: "02", TaxName: "Reduced 8%", TaxType: pos.TaxInclusive, Rate: decimal.NewFromInt(8), Rounding: pos.RoundFloor},
		{TaxCode: "03", TaxName: "Exempt", TaxType: pos.TaxExempt, Rate: decimal.Zero, Rounding: pos.RoundFloor},
	}
	for i := range taxes {
		if err := h.Masters.SaveTax(ctx, req.TenantID, &taxes[i]); err != nil {
			writeError(w, op, err)
			return
		}
	}

	items := []pos.ItemMaster{
		{ItemCode: "4901", Description: "Coffee Beans 200g", UnitPrice: decimal.NewFromInt(1200), TaxCode: "01"},
		{ItemCode: "4902", Description: "Green Tea 100g", UnitPrice: decimal.NewFromInt(800), TaxCode: "01"},
		{ItemCode: "4903", Description: "Rice Ball", UnitPrice: decimal.NewFromInt(150), TaxCode: "02"},
		{ItemCode: "4904", Description: "Mineral Water 500ml", UnitPrice: decimal.NewFromInt(100), TaxCode: "02"},
		{ItemCode: "4905", Description: "Gift Voucher", UnitPrice: decimal.NewFromInt(1000), TaxCode: "03", IsDiscountRestricted: true},
	}
	for i := range items {
		if err := h.Masters.SaveItem(ctx, req.TenantID, req.StoreCode, &items[i]); err != nil {
			writeError(w, op, err)
			return
		}
	}

	payments := []pos.PaymentMaster{
		{PaymentCode: "01", Description: "Cash"},
		{PaymentCode: "11", Description: "Cashless"},
	}
	for i := range payments {
		if err := h.Masters.SavePayment(ctx, req.TenantID, &payments[i]); err != nil {
			writeError(w, op, err)
			return
		}
	}

	rec := &store.TerminalRecord{
		TenantID:      req.TenantID,
		StoreCode:     req.StoreCode,
		TerminalNo:    1,
		APIKey:        uuid.NewString(),
		Status:        terminal.StatusOpened,
		SignedInStaff: "S001",
		BusinessDate:  req.BusinessDate,
	}
	if err := h.Terminals.SaveTerminal(ctx, rec); err != nil {
		writeError(w, op, err)
		return
	}
	h.Resolver.Invalidate(rec.TenantID, rec.StoreCode, rec.TerminalNo)

	writeResult(w, http.StatusCreated, op, map[string]any{
		"items":    len(items),
		"taxes":    len(taxes),
		"payments": len(payments),
		"terminal": RegisterTerminalResponse{
			TenantID:     rec.TenantID,
			StoreCode:    rec.StoreCode,
			TerminalNo:   rec.TerminalNo,
			APIKey:       rec.APIKey,
			Status:       rec.Status,
			BusinessDate: rec.BusinessDate,
		},
	})
}
