package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/worktracker/internal/cache"
	"github.com/google/uuid"
)

const idempotencyField = "idempotency_key"

// idempotency remembers form submissions so a double-submitted form is applied once.
type idempotency struct {
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

func newIdempotency(c cache.Cache, ttl time.Duration, logger *slog.Logger) *idempotency {
	return &idempotency{cache: c, ttl: ttl, logger: logger}
}

func idempotencyKey(userID int64, token string) string {
	return fmt.Sprintf("idem:%d:%s", userID, token)
}

// claim reports whether the request may proceed, and returns a release func
// to call when the mutation fails so the user can resubmit. Requests without
// a well-formed token always proceed. A cache outage does not block writes.
func (i *idempotency) claim(r *http.Request, userID int64) (bool, func()) {
	noop := func() {}
	if i == nil || i.cache == nil {
		return true, noop
	}
	token := r.FormValue(idempotencyField)
	if _, err := uuid.Parse(token); err != nil {
		return true, noop
	}

	key := idempotencyKey(userID, token)
	ok, err := i.cache.SetNX(r.Context(), key, r.URL.Path, i.ttl)
	if err != nil {
		i.logger.Warn("idempotency cache unavailable", "error", err)
		return true, noop
	}
	if !ok {
		return false, noop
	}
	return true, func() {
		ctx := context.WithoutCancel(r.Context())
		if err := i.cache.Delete(ctx, key); err != nil {
			i.logger.Warn("release idempotency key", "error", err)
		}
	}
}
