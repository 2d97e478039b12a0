package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/avoronin/bankaccounts/internal/infrastructure/auth"
	service "github.com/avoronin/bankaccounts/internal/services"
	pkgerrors "github.com/avoronin/bankaccounts/pkg/errors"
	"github.com/gorilla/mux"
)

type Handler struct {
	service service.AccountService
}

func NewHandler(s service.AccountService) *Handler {
	return &Handler{service: s}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if status == http.StatusInternalServerError {
		// Internal detail stays in the logs.
		json.NewEncoder(w).Encode(errorResponse{Error: "internal server error"})
		return
	}
	json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/bank/accounts/insert", h.Insert).Methods(http.MethodPost)
	r.HandleFunc("/bank/accounts/login", h.Login).Methods(http.MethodPost)
}

// RegisterProtectedRoutes expects a subrouter already rooted at
// /bank/accounts with the auth middleware attached.
func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/get_balance", h.GetBalance).Methods(http.MethodGet)
	r.HandleFunc("/withdraw", h.Withdraw).Methods(http.MethodPut)
	r.HandleFunc("/deposit", h.Deposit).Methods(http.MethodPut)
	r.HandleFunc("/delete", h.Delete).Methods(http.MethodDelete)
	r.HandleFunc("/history", h.History).Methods(http.MethodGet)
}

func (h *Handler) Insert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string  `json:"username"`
		Password string  `json:"password"`
		Balance  float64 `json:"balance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.service.Register(r.Context(), req.Username, req.Password, req.Balance); err != nil {
		switch {
		case errors.Is(err, pkgerrors.ErrAccountExists), errors.Is(err, pkgerrors.ErrInvalidInput):
			h.writeError(w, http.StatusBadRequest, err)
		default:
			h.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "User created successfully"})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	token, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrUnauthorized) {
			h.writeError(w, http.StatusUnauthorized, err)
		} else {
			h.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	username, ok := auth.UsernameFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("not authenticated"))
		return
	}

	balance, err := h.service.GetBalance(r.Context(), username)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrAccountNotFound) {
			h.writeError(w, http.StatusNotFound, err)
		} else {
			h.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"username": username, "balance": balance})
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	username, ok := auth.UsernameFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("not authenticated"))
		return
	}

	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	newBalance, err := h.service.Withdraw(r.Context(), username, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, pkgerrors.ErrInsufficientFunds), errors.Is(err, pkgerrors.ErrInvalidAmount):
			h.writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, pkgerrors.ErrAccountNotFound):
			h.writeError(w, http.StatusNotFound, err)
		default:
			h.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Withdraw successful", "new_balance": newBalance})
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	username, ok := auth.UsernameFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("not authenticated"))
		return
	}

	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	newBalance, err := h.service.Deposit(r.Context(), username, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, pkgerrors.ErrInvalidAmount):
			h.writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, pkgerrors.ErrAccountNotFound):
			h.writeError(w, http.StatusNotFound, err)
		default:
			h.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Deposit successful", "new_balance": newBalance})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	username, ok := auth.UsernameFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("not authenticated"))
		return
	}

	if err := h.service.Delete(r.Context(), username); err != nil {
		if errors.Is(err, pkgerrors.ErrAccountNotFound) {
			h.writeError(w, http.StatusNotFound, err)
		} else {
			h.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	username, ok := auth.UsernameFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("not authenticated"))
		return
	}

	entries, err := h.service.GetHistory(r.Context(), username)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.writeJSON(w, http.StatusOK, entries)
}
