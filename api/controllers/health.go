package controllers

import (
	"net/http"

	"github.com/lumapay/lumapay-backend/api/responses"
	"github.com/lumapay/lumapay-backend/pkg/db"
	pkgerrors "github.com/lumapay/lumapay-backend/pkg/errors"
	"github.com/lumapay/lumapay-backend/pkg/logger"
	"github.com/lumapay/lumapay-backend/pkg/redis"
)

// Health reports liveness plus datasource reachability.
func Health(database db.Pinger, cache redis.Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if database != nil {
			if err := database.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unreachable"))
				return
			}
		}
		if cache != nil {
			if err := cache.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unreachable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}
