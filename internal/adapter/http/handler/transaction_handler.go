package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/entryledger/internal/adapter/http/dto"
	"github.com/iho/entryledger/internal/domain"
	"github.com/iho/entryledger/internal/usecase"
)

// TransactionService defines the behavior needed by TransactionHandler.
type TransactionService interface {
	Deposit(ctx context.Context, input usecase.DepositInput) (*domain.Transaction, error)
	Withdraw(ctx context.Context, input usecase.WithdrawInput) (*domain.Transaction, error)
	Transfer(ctx context.Context, input usecase.TransferInput) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, []*domain.Entry, error)
	ListTransactions(ctx context.Context, input usecase.ListTransactionsInput) ([]*domain.Transaction, error)
}

// TransactionHandler handles money movement requests.
type TransactionHandler struct {
	coordinator TransactionService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(coordinator TransactionService) *TransactionHandler {
	return &TransactionHandler{coordinator: coordinator}
}

// Deposit credits an account.
func (h *TransactionHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	tx, err := h.coordinator.Deposit(r.Context(), req.ToUseCaseInput())
	h.respond(w, r, "deposit failed", tx, err)
}

// Withdraw debits an account.
func (h *TransactionHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req dto.WithdrawRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	tx, err := h.coordinator.Withdraw(r.Context(), req.ToUseCaseInput())
	h.respond(w, r, "withdrawal failed", tx, err)
}

// Transfer moves funds between two accounts.
func (h *TransactionHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	tx, err := h.coordinator.Transfer(r.Context(), req.ToUseCaseInput())
	h.respond(w, r, "transfer failed", tx, err)
}

func (h *TransactionHandler) respond(w http.ResponseWriter, r *http.Request, message string, tx *domain.Transaction, err error) {
	if err != nil {
		writeDomainError(w, r, message, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransactionFromDomain(tx))
}

// Get retrieves a transaction and its postings.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	tx, entries, err := h.coordinator.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "failed to get transaction", err)
		return
	}

	resp := dto.TransactionFromDomain(tx)
	resp.Entries = dto.EntriesFromDomain(entries)
	writeJSON(w, http.StatusOK, resp)
}

// ListByAccount lists the transactions that name an account on either side.
func (h *TransactionHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	txs, err := h.coordinator.ListTransactions(r.Context(), usecase.ListTransactionsInput{
		AccountID: chi.URLParam(r, "id"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeDomainError(w, r, "failed to list transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionsFromDomain(txs))
}
