package api

import (
	"net/http"

	"github.com/clubops/payroll-engine/compensation"
)

// =============================================================================
// FINANCE ENDPOINTS
// =============================================================================

// GenerateFinance posts every verified shift of a club in [from, to) that
// has no ledger rows yet. Shifts already imported are counted as skipped.
// POST /api/finance/generate
func (h *Handler) GenerateFinance(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.ledger.GenerateFromShifts(r.Context(), req.ClubID, req.From, req.To, req.Actor)
	if err != nil {
		h.fail(w, r, "Failed to generate transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CreateTransaction appends an owner-entered ledger row.
// POST /api/finance/transactions
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tx, err := h.ledger.RecordManual(r.Context(), compensation.FinanceTransaction{
		ClubID:          req.ClubID,
		CategoryID:      req.CategoryID,
		Amount:          req.Amount,
		Type:            req.Type,
		PaymentMethod:   req.PaymentMethod,
		TransactionDate: req.TransactionDate,
		Description:     req.Description,
		CreatedBy:       req.CreatedBy,
	})
	if err != nil {
		h.fail(w, r, "Failed to record transaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// ListTransactions returns ledger rows.
// GET /api/finance/transactions?club_id=&shift_id=&from=&to=
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := compensation.TransactionFilter{
		ClubID:         q.Get("club_id"),
		RelatedShiftID: q.Get("shift_id"),
	}
	var err error
	if f.From, err = queryTime(r, "from"); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from", err)
		return
	}
	if f.To, err = queryTime(r, "to"); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to", err)
		return
	}

	txs, err := h.ledger.Transactions(r.Context(), f)
	if err != nil {
		h.fail(w, r, "Failed to list transactions", err)
		return
	}
	if txs == nil {
		txs = []compensation.FinanceTransaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}
