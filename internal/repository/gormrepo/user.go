package gormrepo

import (
	"context"
	"strings"

	"github.com/nutriplan/nutriplan/internal/domain/user"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/logger"
	"github.com/nutriplan/nutriplan/internal/postgres"
	"github.com/nutriplan/nutriplan/internal/types"
)

type userRepository struct {
	client *postgres.Client
	log    *logger.Logger
	table  string
}

// NewUserRepository reads profiles from table, defaulting to the profiles table
func NewUserRepository(client *postgres.Client, log *logger.Logger, table string) user.Repository {
	if table == "" {
		table = string(types.TableNameProfiles)
	}
	return &userRepository{client: client, log: log, table: table}
}

func (r *userRepository) FindIDByEmail(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ierr.NewError("email is required").
			WithHint("An email is required to look up a user").
			Mark(ierr.ErrValidation)
	}

	var ids []string
	err := r.client.DB(ctx).
		Table(r.table).
		Where("LOWER(email) = ?", email).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to look up user by email").
			Mark(ierr.ErrDatabase)
	}
	if len(ids) == 0 {
		return "", ierr.NewError("user not found").
			WithHint("No user has this email").
			WithReportableDetails(map[string]any{"email": email}).
			Mark(ierr.ErrNotFound)
	}
	return ids[0], nil
}
