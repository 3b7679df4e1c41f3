package apiauth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lila-deepq/deepq/internal/apperror"
	"github.com/lila-deepq/deepq/internal/dbtest"
	"github.com/lila-deepq/deepq/internal/model"
	"github.com/lila-deepq/deepq/internal/store"
)

func TestStore_RegisterAndResolve(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db := dbtest.Open(ctx, t)
	s := New(store.New(db))

	key := model.ApiKey("irwin-worker-key-abc123")
	uid := model.UserId("irwin")

	err := s.Register(ctx, key, &model.ApiUser{
		Name:  "irwin",
		User:  &uid,
		Perms: []model.AnalysisType{model.Deep, model.UserAnalysis},
	})
	require.NoError(t, err)

	got, err := s.Resolve(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "irwin", got.Name)
	require.True(t, got.HasPermission(model.Deep))
	require.True(t, got.HasPermission(model.UserAnalysis))
	require.False(t, got.HasPermission(model.SystemAnalysis))
	require.NotNil(t, got.User)
	require.Equal(t, model.UserId("irwin"), *got.User)
}

func TestStore_Resolve_UnknownKey(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db := dbtest.Open(ctx, t)
	s := New(store.New(db))

	_, err := s.Resolve(ctx, model.ApiKey("never-registered"))
	require.Error(t, err)
	require.True(t, apperror.Is(err, apperror.Forbidden))
}

func TestStore_Resolve_EmptyKey(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db := dbtest.Open(ctx, t)
	s := New(store.New(db))

	_, err := s.Resolve(ctx, model.ApiKey(""))
	require.Error(t, err)
	require.True(t, apperror.Is(err, apperror.Unauthenticated))
}

func TestStore_Resolve_WrongKeyWithSameLookupPrefix(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db := dbtest.Open(ctx, t)
	s := New(store.New(db))

	require.NoError(t, s.Register(ctx, model.ApiKey("key-one"), &model.ApiUser{Name: "one"}))

	_, err := s.Resolve(ctx, model.ApiKey("key-two"))
	require.Error(t, err)
	require.True(t, apperror.Is(err, apperror.Forbidden))
}
