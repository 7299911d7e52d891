package supabase

import (
	"context"
	"strings"

	"github.com/nedpals/supabase-go"
	"github.com/nutriplan/nutriplan/internal/config"
	"github.com/nutriplan/nutriplan/internal/domain/user"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/logger"
	"github.com/nutriplan/nutriplan/internal/types"
)

type profileRow struct {
	ID string `json:"id"`
}

// userRepository resolves users through the Supabase PostgREST profiles endpoint
type userRepository struct {
	client *supabase.Client
	table  string
	logger *logger.Logger
}

func NewUserRepository(cfg *config.Configuration, log *logger.Logger) (user.Repository, error) {
	if cfg.Supabase.BaseURL == "" || cfg.Supabase.ServiceKey == "" {
		return nil, ierr.NewError("supabase is not configured").
			WithHint("Supabase base url and service key are required for identity lookups").
			Mark(ierr.ErrValidation)
	}

	table := cfg.Identity.Table
	if table == "" {
		table = string(types.TableNameProfiles)
	}

	return &userRepository{
		client: supabase.CreateClient(cfg.Supabase.BaseURL, cfg.Supabase.ServiceKey),
		table:  table,
		logger: log,
	}, nil
}

func (r *userRepository) FindIDByEmail(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ierr.NewError("email is required").
			WithHint("An email is required to look up a user").
			Mark(ierr.ErrValidation)
	}

	var rows []profileRow
	if err := r.client.DB.From(r.table).Select("id").Eq("email", email).Execute(&rows); err != nil {
		r.logger.WithContext(ctx).Errorw("supabase profile lookup failed", "table", r.table, "error", err)
		return "", ierr.WithError(err).
			WithHint("Failed to look up user by email").
			Mark(ierr.ErrDatabase)
	}

	if len(rows) == 0 || rows[0].ID == "" {
		return "", ierr.NewError("user not found").
			WithHint("No user has this email").
			WithReportableDetails(map[string]any{"email": email}).
			Mark(ierr.ErrNotFound)
	}
	return rows[0].ID, nil
}
