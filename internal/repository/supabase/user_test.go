package supabase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nutriplan/nutriplan/internal/config"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProfilesServer(t *testing.T, profiles map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/profiles") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		email := strings.TrimPrefix(r.URL.Query().Get("email"), "eq.")
		w.Header().Set("Content-Type", "application/json")
		if id, ok := profiles[email]; ok {
			_, _ = w.Write([]byte(`[{"id":"` + id + `"}]`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFindIDByEmail(t *testing.T) {
	srv := newProfilesServer(t, map[string]string{"maria@example.com": "user_1"})

	cfg := config.GetDefaultConfig()
	cfg.Supabase.BaseURL = srv.URL
	cfg.Supabase.ServiceKey = "service-key"

	repo, err := NewUserRepository(cfg, logger.NewNopLogger())
	require.NoError(t, err)

	id, err := repo.FindIDByEmail(context.Background(), "Maria@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "user_1", id)

	_, err = repo.FindIDByEmail(context.Background(), "nobody@example.com")
	assert.True(t, ierr.IsNotFound(err))
}

func TestNewUserRepositoryRequiresConfig(t *testing.T) {
	_, err := NewUserRepository(config.GetDefaultConfig(), logger.NewNopLogger())
	assert.True(t, ierr.IsValidation(err))
}
