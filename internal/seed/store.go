package seed

import (
	"context"
	"fmt"
	"time"

	"matcha/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists seeded rows. GormStore is the production implementation;
// tests substitute in-memory or mock stores.
type Store interface {
	// EnsureTags inserts any missing tag names and returns the id of every name.
	EnsureTags(ctx context.Context, names []string) (map[string]uint, error)
	// Begin opens the transaction that the next batch of users is written in.
	Begin(ctx context.Context) (Tx, error)
}

// Tx is an open batch transaction.
type Tx interface {
	// InsertProfile writes the user, then its location, then its tag links.
	// On success p.User.ID holds the store-assigned id.
	InsertProfile(ctx context.Context, p *Profile, tagIDs map[string]uint) error
	SavePoint(name string) error
	RollbackTo(name string) error
	Commit() error
	Rollback() error
}

// GormStore writes to the backend schema through GORM.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore creates a Store bound to db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

// EnsureTags upserts the catalog tags in one transaction, leaving existing rows untouched.
func (s *GormStore) EnsureTags(ctx context.Context, names []string) (map[string]uint, error) {
	if len(names) == 0 {
		return nil, ErrNoTags
	}

	ids := make(map[string]uint, len(names))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows := make([]models.Tag, len(names))
		for i, name := range names {
			rows[i] = models.Tag{Name: name}
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&rows).Error; err != nil {
			return fmt.Errorf("insert tags: %w", err)
		}

		// Ids returned by a partially conflicting insert are not reliable; read them back.
		var existing []models.Tag
		if err := tx.Where("name IN ?", names).Find(&existing).Error; err != nil {
			return fmt.Errorf("load tags: %w", err)
		}
		for _, t := range existing {
			ids[t.Name] = t.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		if _, ok := ids[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTag, name)
		}
	}
	return ids, nil
}

// Begin starts a batch transaction.
func (s *GormStore) Begin(ctx context.Context) (Tx, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("begin transaction: %w", tx.Error)
	}
	return &gormTx{tx: tx, now: s.now}, nil
}

type gormTx struct {
	tx  *gorm.DB
	now func() time.Time
}

func (t *gormTx) InsertProfile(ctx context.Context, p *Profile, tagIDs map[string]uint) error {
	links := make([]models.UserTag, 0, len(p.Tags))
	for _, name := range p.Tags {
		if _, ok := tagIDs[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownTag, name)
		}
	}

	db := t.tx.WithContext(ctx)
	if err := db.Create(&p.User).Error; err != nil {
		return fmt.Errorf("insert user %s: %w", p.User.Username, err)
	}

	location := models.UserLocation{
		UserID:    p.User.ID,
		Lat:       p.Lat,
		Lon:       p.Lon,
		UpdatedAt: t.now().UTC(),
	}
	if err := db.Create(&location).Error; err != nil {
		return fmt.Errorf("insert location for user %d: %w", p.User.ID, err)
	}

	for _, name := range p.Tags {
		links = append(links, models.UserTag{UserID: p.User.ID, TagID: tagIDs[name]})
	}
	if err := db.Create(&links).Error; err != nil {
		return fmt.Errorf("insert tags for user %d: %w", p.User.ID, err)
	}
	return nil
}

func (t *gormTx) SavePoint(name string) error {
	return t.tx.SavePoint(name).Error
}

func (t *gormTx) RollbackTo(name string) error {
	return t.tx.RollbackTo(name).Error
}

func (t *gormTx) Commit() error {
	return t.tx.Commit().Error
}

func (t *gormTx) Rollback() error {
	return t.tx.Rollback().Error
}
