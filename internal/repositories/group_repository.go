package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"jam-service/internal/models"
)

var ErrGroupNotFound = errors.New("group not found")

// GroupRepository abstracts the persistent group records owned by the group
// CRUD service. This core only reads groups and toggles their active flag.
type GroupRepository interface {
	GetGroup(ctx context.Context, groupID string) (models.Group, error)
	SetActive(ctx context.Context, groupID string, active bool) error
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

// GetGroup fetches a single group.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	var group models.Group
	err := r.db.GetContext(ctx, &group, `SELECT id, name, owner_id, platform, is_active, created_at FROM groups WHERE id=$1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	return group, err
}

// SetActive flips the group's live-session flag.
func (r *GroupRepo) SetActive(ctx context.Context, groupID string, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE groups SET is_active=$2 WHERE id=$1`, groupID, active)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrGroupNotFound
	}
	return nil
}
