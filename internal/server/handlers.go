package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/banksys/banking-backend/internal/accounts"
	"github.com/banksys/banking-backend/internal/auth"
	"github.com/banksys/banking-backend/internal/errs"
	"github.com/banksys/banking-backend/internal/ledger"
)

// Handlers bundles the HTTP endpoints with their collaborators.
type Handlers struct {
	registry *accounts.Registry
	engine   *ledger.Engine
	auth     *auth.Service
	validate *validator.Validate
}

// NewHandlers wires the endpoint set.
func NewHandlers(registry *accounts.Registry, engine *ledger.Engine, authSvc *auth.Service) *Handlers {
	return &Handlers{
		registry: registry,
		engine:   engine,
		auth:     authSvc,
		validate: validator.New(),
	}
}

// decode unmarshals and validates a request body.
func (h *Handlers) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("malformed request body: %w", errs.ErrInvalidArgument)
	}
	if err := h.validate.Struct(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", errs.ErrInvalidArgument)
	}
	return nil
}

// principal pulls the authenticated user ID from the request context.
// The auth middleware guarantees it is set on protected routes.
func principal(r *http.Request) (string, error) {
	id, ok := auth.UserID(r.Context())
	if !ok {
		return "", fmt.Errorf("no principal on request: %w", errs.ErrUnauthenticated)
	}
	return id, nil
}

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *Handlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	token, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token})
}

func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

type createAccountRequest struct {
	InitialBalance decimal.Decimal `json:"initialBalance"`
}

func (h *Handlers) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, err := principal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	views, err := h.registry.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handlers) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := principal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req createAccountRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	view, err := h.registry.Create(r.Context(), userID, req.InitialBalance)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// amountRequest covers deposit and withdraw. accountNumber is the
// optional explicit selector; empty means the principal's first
// account.
type amountRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	AccountNumber string          `json:"accountNumber"`
}

type transferRequest struct {
	AccountFrom string          `json:"accountFrom" validate:"required"`
	AccountTo   string          `json:"accountTo" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
}

// transactionResponse mirrors the operation result. Field names follow
// the public API contract.
type transactionResponse struct {
	Message            string          `json:"message"`
	AccountFromBalance decimal.Decimal `json:"accountFromBalance"`
	AccountToBalance   decimal.Decimal `json:"accountToBalance"`
}

func toResponse(res ledger.Result) transactionResponse {
	return transactionResponse{
		Message:            res.Message,
		AccountFromBalance: res.FromBalance,
		AccountToBalance:   res.ToBalance,
	}
}

func (h *Handlers) handleDeposit(w http.ResponseWriter, r *http.Request) {
	userID, err := principal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req amountRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.engine.Deposit(r.Context(), userID, req.AccountNumber, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

func (h *Handlers) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := principal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req amountRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.engine.Withdraw(r.Context(), userID, req.AccountNumber, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

func (h *Handlers) handleTransfer(w http.ResponseWriter, r *http.Request) {
	userID, err := principal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req transferRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.engine.Transfer(r.Context(), userID, req.AccountFrom, req.AccountTo, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

func (h *Handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := principal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	entries, err := h.engine.History(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]transactionResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, transactionResponse{
			Message:            e.Message,
			AccountFromBalance: e.FromBalance,
			AccountToBalance:   e.ToBalance,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
