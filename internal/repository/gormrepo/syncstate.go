package gormrepo

import (
	"context"
	"time"

	"github.com/nutriplan/nutriplan/internal/domain/syncstate"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/logger"
	"github.com/nutriplan/nutriplan/internal/postgres"
	"gorm.io/gorm/clause"
)

type syncStateRepository struct {
	client *postgres.Client
	log    *logger.Logger
}

func NewSyncStateRepository(client *postgres.Client, log *logger.Logger) syncstate.Repository {
	return &syncStateRepository{client: client, log: log}
}

func (r *syncStateRepository) Get(ctx context.Context, id string) (*syncstate.SyncState, error) {
	var model syncStateModel
	if err := r.client.DB(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if isNotFoundError(err) {
			return nil, ierr.WithError(err).
				WithHint("Billing sync has not run yet").
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to read billing sync state").
			Mark(ierr.ErrDatabase)
	}
	return model.toDomain(), nil
}

func (r *syncStateRepository) Save(ctx context.Context, state *syncstate.SyncState) error {
	if state.ID == "" {
		state.ID = syncstate.DefaultID
	}
	state.UpdatedAt = time.Now().UTC()

	model := &syncStateModel{
		ID:           state.ID,
		LastSyncedAt: utcPtr(state.LastSyncedAt),
		LastRunAt:    utcPtr(state.LastRunAt),
		UpdatedAt:    state.UpdatedAt,
	}

	err := r.client.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_synced_at", "last_run_at", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to save billing sync state").
			Mark(ierr.ErrDatabase)
	}

	r.log.Debugw("saved billing sync state", "last_synced_at", state.LastSyncedAt, "last_run_at", state.LastRunAt)
	return nil
}
