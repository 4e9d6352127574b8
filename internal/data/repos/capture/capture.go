package capture

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	types "github.com/yungbote/mindtrail-backend/internal/domain"
	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

var ErrMissingUser = errors.New("collection ref requires a user id")

// CollectionRef addresses one user's capture collection.
type CollectionRef struct {
	UserID string
}

func (r CollectionRef) Path() string { return "users/" + r.UserID + "/captures" }

func (r CollectionRef) validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrMissingUser
	}
	return nil
}

type CaptureRepo interface {
	// Add inserts one row and returns the id assigned on create.
	Add(ctx context.Context, tx *gorm.DB, ref CollectionRef, c *types.Capture) (string, error)
	// List returns newest first, ties broken by id.
	List(ctx context.Context, tx *gorm.DB, ref CollectionRef, limit int) ([]*types.Capture, error)
	Count(ctx context.Context, tx *gorm.DB, ref CollectionRef) (int64, error)
}

type captureRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCaptureRepo(db *gorm.DB, baseLog *logger.Logger) CaptureRepo {
	return &captureRepo{db: db, log: baseLog.With("repo", "CaptureRepo")}
}

func (r *captureRepo) Add(ctx context.Context, tx *gorm.DB, ref CollectionRef, c *types.Capture) (string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := ref.validate(); err != nil {
		return "", err
	}
	if c == nil {
		return "", errors.New("capture required")
	}

	// the store owns the id and the owner
	c.ID = ""
	c.UserID = ref.UserID

	if err := transaction.WithContext(ctx).Create(c).Error; err != nil {
		return "", err
	}
	return c.ID, nil
}

func (r *captureRepo) List(ctx context.Context, tx *gorm.DB, ref CollectionRef, limit int) ([]*types.Capture, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := ref.validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	results := []*types.Capture{}
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", ref.UserID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *captureRepo) Count(ctx context.Context, tx *gorm.DB, ref CollectionRef) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := ref.validate(); err != nil {
		return 0, err
	}
	var n int64
	if err := transaction.WithContext(ctx).
		Model(&types.Capture{}).
		Where("user_id = ?", ref.UserID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
