package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// HealthHandler exposes Kubernetes-style liveness and readiness endpoints.
// Readiness pings both stores; a split deployment is only ready when both
// sides answer.
type HealthHandler struct {
	balanceDB *pgxpool.Pool
	ledgerDB  *pgxpool.Pool
	redis     redis.Cmdable
}

func NewHealthHandler(balanceDB, ledgerDB *pgxpool.Pool, redisClient redis.Cmdable) *HealthHandler {
	return &HealthHandler{balanceDB: balanceDB, ledgerDB: ledgerDB, redis: redisClient}
}

// Live always reports OK – if the process is up, it's live.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready checks the balance store, the ledger store and Redis.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
	defer cancel()

	if err := h.balanceDB.Ping(ctx); err != nil {
		RespondError(w, r, http.StatusServiceUnavailable, "health/balance-store", "balance store unavailable")
		return
	}
	if h.ledgerDB != h.balanceDB {
		if err := h.ledgerDB.Ping(ctx); err != nil {
			RespondError(w, r, http.StatusServiceUnavailable, "health/ledger-store", "ledger store unavailable")
			return
		}
	}
	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			RespondError(w, r, http.StatusServiceUnavailable, "health/redis", "redis unavailable")
			return
		}
	}

	RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
