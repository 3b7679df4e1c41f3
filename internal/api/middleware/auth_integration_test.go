package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lila-deepq/deepq/internal/apiauth"
	"github.com/lila-deepq/deepq/internal/dbtest"
	"github.com/lila-deepq/deepq/internal/model"
	"github.com/lila-deepq/deepq/internal/store"
)

func TestAuthenticate_ResolvesRegisteredKey(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db := dbtest.Open(ctx, t)
	authStore := apiauth.New(store.New(db))

	require.NoError(t, authStore.Register(ctx, "fishnet-worker-key", &model.ApiUser{
		Name:  "fishnet",
		Perms: []model.AnalysisType{model.Deep},
	}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var gotUser *model.ApiUser

	handler := Authenticate(authStore, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := GetAuthContext(r.Context())
		require.True(t, ok)
		gotUser = ac.User
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/acquire", nil)
	req.Header.Set("X-Api-Key", "fishnet-worker-key")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotUser)
	require.Equal(t, "fishnet", gotUser.Name)
}

func TestAuthenticate_RejectsUnknownKey(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db := dbtest.Open(ctx, t)
	authStore := apiauth.New(store.New(db))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := Authenticate(authStore, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run for an unknown key")
	}))

	req := httptest.NewRequest(http.MethodPost, "/acquire", nil)
	req.Header.Set("X-Api-Key", "never-registered")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}
