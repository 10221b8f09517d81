package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/relaymesh/bridge-indexer/pkg/db"
)

const defaultRequestTimeout = 60 * time.Second

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ScanTrigger is the slice of the scanner exposed to the admin endpoint.
type ScanTrigger interface {
	ScanChain(ctx context.Context, chainID uint64) error
	ScanRange(ctx context.Context, chainID, from, to uint64) error
}

// Handler serves the read API over the indexer's persisted state plus the
// admin scan endpoint.
type Handler struct {
	deposits *db.DepositStore
	rewards  *db.RewardStore
	views    *db.ViewStore
	scanner  ScanTrigger
	logger   *zap.Logger
}

func NewHandler(deposits *db.DepositStore, rewards *db.RewardStore, views *db.ViewStore, scanner ScanTrigger, logger *zap.Logger) *Handler {
	return &Handler{
		deposits: deposits,
		rewards:  rewards,
		views:    views,
		scanner:  scanner,
		logger:   logger.Named("api"),
	}
}

// Router builds the chi router with the full endpoint set.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultRequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/deposits", handleError(h.listDeposits))
	r.Get("/deposits/{id}", handleError(h.getDeposit))
	r.Get("/rewards", handleError(h.listRewards))
	r.Get("/referrals/{address}", handleError(h.listReferrals))

	r.Post("/admin/scan", handleError(h.triggerScan))

	return r
}

func (h *Handler) listDeposits(w http.ResponseWriter, r *http.Request) error {
	depositor := r.URL.Query().Get("depositor")
	if depositor != "" && !common.IsHexAddress(depositor) {
		return badRequest(nil, "invalid depositor address")
	}
	limit, offset, err := pagination(r)
	if err != nil {
		return err
	}

	deposits, err := h.deposits.List(r.Context(), depositor, limit, offset)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, deposits)
	return nil
}

func (h *Handler) getDeposit(w http.ResponseWriter, r *http.Request) error {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return badRequest(err, "invalid deposit id")
	}

	deposit, err := h.deposits.GetWithRelations(r.Context(), id)
	if err != nil {
		if err == db.ErrDepositNotFound {
			return notFound("deposit not found")
		}
		return err
	}
	writeJSON(w, http.StatusOK, deposit)
	return nil
}

func (h *Handler) listRewards(w http.ResponseWriter, r *http.Request) error {
	recipient := r.URL.Query().Get("recipient")
	if !common.IsHexAddress(recipient) {
		return badRequest(nil, "recipient address required")
	}
	limit, _, err := pagination(r)
	if err != nil {
		return err
	}

	rewards, err := h.rewards.ListByRecipient(r.Context(), common.HexToAddress(recipient).Hex(), limit)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, rewards)
	return nil
}

func (h *Handler) listReferrals(w http.ResponseWriter, r *http.Request) error {
	address := chi.URLParam(r, "address")
	if !common.IsHexAddress(address) {
		return badRequest(nil, "invalid referral address")
	}
	limit, _, err := pagination(r)
	if err != nil {
		return err
	}

	referrals, err := h.views.ListReferrals(r.Context(), common.HexToAddress(address).Hex(), limit)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, referrals)
	return nil
}

type scanRequest struct {
	ChainID uint64 `json:"chain_id"`
	From    uint64 `json:"from"`
	To      uint64 `json:"to"`
}

// triggerScan runs a scan synchronously. With a block range it re-scans that
// window; without one it advances the chain from its checkpoint.
func (h *Handler) triggerScan(w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return badRequest(err, "failed to read request")
	}
	var req scanRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return badRequest(err, "invalid JSON")
	}
	if req.ChainID == 0 {
		return badRequest(nil, "chain_id required")
	}

	if req.From > 0 || req.To > 0 {
		if req.From > req.To {
			return badRequest(nil, "from must not exceed to")
		}
		err = h.scanner.ScanRange(r.Context(), req.ChainID, req.From, req.To)
	} else {
		err = h.scanner.ScanChain(r.Context(), req.ChainID)
	}
	if err != nil {
		h.logger.Error("manual scan failed", zap.Uint64("chain_id", req.ChainID), zap.Error(err))
		return err
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

func pagination(r *http.Request) (limit, offset int, err error) {
	limit = defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return 0, 0, badRequest(err, "invalid limit")
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, badRequest(err, "invalid offset")
		}
	}
	return limit, offset, nil
}
