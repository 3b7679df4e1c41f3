package api

import (
	"context"
	"net/http"

	"github.com/lila-deepq/deepq/internal/api/middleware"
	"github.com/lila-deepq/deepq/internal/apiauth"
	"github.com/lila-deepq/deepq/internal/apperror"
	"github.com/lila-deepq/deepq/internal/model"
)

// resolveWorker identifies the caller of a worker endpoint. middleware.
// Authenticate already resolved a header-borne key, if present; when it
// didn't, the request may still carry a fishnet envelope in its JSON body,
// which only the handler — after decoding — can see. body may be nil if
// decoding hasn't happened yet or failed; in that case only the header path
// is tried.
func resolveWorker(ctx context.Context, authStore *apiauth.Store, r *http.Request, body HasAPIKey) (*model.ApiUser, error) {
	if ac, ok := middleware.GetAuthContext(ctx); ok && ac.User != nil {
		return ac.User, nil
	}

	var key string
	if body != nil {
		key = body.FishnetAPIKey()
	}

	if key == "" {
		return nil, apperror.New(apperror.Unauthenticated, "api: no credential presented")
	}

	return authStore.Resolve(ctx, model.ApiKey(key))
}
