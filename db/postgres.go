package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"moul.io/zapgorm2"
)

type patchedLogger struct {
	zapgorm2.Logger
}

// ErrRecordNotFound will be handled in application logic, let's not forward this to zap/sentry
func (l *patchedLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if err == gorm.ErrRecordNotFound {
		return
	}
	l.Logger.Trace(ctx, begin, fc, err)
}

// record is the row layout of every postgres-backed collection
type record struct {
	ID        string   `gorm:"primaryKey"`
	Data      Document `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *record) document() Document {
	doc := r.Data.Clone()
	doc[IDField] = r.ID
	return doc
}

// PostgresOptions configures NewPostgres
type PostgresOptions struct {
	URI         string
	Logger      *zap.Logger
	Collections []string
}

// PostgresStore keeps each collection in its own table with a JSONB column
type PostgresStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ Store = &PostgresStore{}

// NewPostgres returns a Store for interacting with the PostgreSQL database.
// A table is migrated for every name in Collections.
func NewPostgres(option PostgresOptions) (*PostgresStore, error) {
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	gLogger := zapgorm2.Logger{
		ZapLogger:        option.Logger,
		LogLevel:         gormlogger.Warn,
		SlowThreshold:    time.Second,
		SkipCallerLookup: false,
	}
	db, err := gorm.Open(postgres.Open(option.URI), &gorm.Config{
		Logger: &patchedLogger{
			Logger: gLogger,
		},
	})
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot connect to database")
	}
	pool, err := db.DB()
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot get the connection pool")
	}
	pool.SetMaxIdleConns(1)
	pool.SetMaxOpenConns(20)
	pool.SetConnMaxLifetime(time.Hour)

	return newPostgresStore(db, option.Logger, option.Collections)
}

func newPostgresStore(db *gorm.DB, logger *zap.Logger, collections []string) (*PostgresStore, error) {
	for _, name := range collections {
		if err := db.Table(name).AutoMigrate(&record{}); err != nil {
			return nil, extErrors.Wrapf(err, "Cannot migrate collection %s", name)
		}
	}
	return &PostgresStore{
		db:     db,
		logger: logger,
	}, nil
}

func (p *PostgresStore) Collection(name string) Collection {
	return &postgresCollection{
		db:     p.db,
		table:  name,
		logger: p.logger.With(zap.String("collection", name)),
	}
}

// EnsureUnique creates a unique expression index on the JSONB field
func (p *PostgresStore) EnsureUnique(ctx context.Context, collection, field string) error {
	if !identifier(collection) || !identifier(field) {
		return fmt.Errorf("invalid index target %s.%s", collection, field)
	}
	stmt := fmt.Sprintf(
		`CREATE UNIQUE INDEX IF NOT EXISTS "%s_%s_unique" ON "%s" ((data->>'%s'))`,
		collection, field, collection, field,
	)
	if err := p.db.WithContext(ctx).Exec(stmt).Error; err != nil {
		return extErrors.Wrapf(err, "Cannot create unique index on %s.%s", collection, field)
	}
	return nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	pool, err := p.db.DB()
	if err != nil {
		return err
	}
	return pool.PingContext(ctx)
}

func (p *PostgresStore) Close(ctx context.Context) error {
	pool, err := p.db.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}

// identifier reports whether s is safe to splice into DDL
func identifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

type postgresCollection struct {
	db     *gorm.DB
	table  string
	logger *zap.Logger
}

func (c *postgresCollection) query(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx).Table(c.table)
}

// where builds the condition for field, which is either the primary key or
// a top-level JSONB key
func (c *postgresCollection) where(tx *gorm.DB, field string, value interface{}) *gorm.DB {
	if field == IDField {
		return tx.Where("id = ?", value)
	}
	return tx.Where("data->>? = ?", field, fmt.Sprint(value))
}

func (c *postgresCollection) All(ctx context.Context) ([]Document, error) {
	records := make([]record, 0)
	result := c.query(ctx).Order("created_at asc").Find(&records)
	if result.Error != nil {
		c.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list documents")
	}
	docs := make([]Document, 0, len(records))
	for i := range records {
		docs = append(docs, records[i].document())
	}
	return docs, nil
}

func (c *postgresCollection) ByID(ctx context.Context, id string) (Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}
	return c.FindOne(ctx, IDField, id)
}

func (c *postgresCollection) FindOne(ctx context.Context, field string, value interface{}) (Document, error) {
	var rec record

	result := c.where(c.query(ctx), field, value).First(&rec)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		c.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrapf(result.Error, "Cannot find document by %s", field)
	}

	return rec.document(), nil
}

func (c *postgresCollection) Insert(ctx context.Context, doc Document) (*InsertResult, error) {
	rec := record{
		ID:   uuid.New().String(),
		Data: doc.WithoutID(),
	}
	result := c.query(ctx).Create(&rec)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return nil, ErrDuplicate
		}
		c.logger.Error("Unable to insert document",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot insert document")
	}
	return &InsertResult{Acknowledged: true, InsertedID: rec.ID}, nil
}

// Merge locks the matching row with FOR UPDATE and rewrites its JSONB payload
func (c *postgresCollection) Merge(ctx context.Context, field string, value interface{}, patch Document) (*MergeResult, error) {
	mr := &MergeResult{}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current record
		lookupRes := c.where(tx.Table(c.table), field, value).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&current)
		if errors.Is(lookupRes.Error, gorm.ErrRecordNotFound) {
			return nil
		}
		if lookupRes.Error != nil {
			return lookupRes.Error
		}
		mr.MatchedCount = 1
		merged, changed := current.Data.apply(patch.WithoutID())
		if !changed {
			return nil
		}
		saveRes := tx.Table(c.table).
			Where("id = ?", current.ID).
			Updates(map[string]interface{}{
				"data":       merged,
				"updated_at": time.Now(),
			})
		if saveRes.Error != nil {
			return saveRes.Error
		}
		mr.ModifiedCount = saveRes.RowsAffected
		return nil
	})
	if err != nil {
		c.logger.Error("Unable to merge document",
			zap.Error(err),
		)
		return nil, extErrors.Wrap(err, "Cannot merge document")
	}
	return mr, nil
}

// isUniqueViolation matches SQLSTATE 23505 without depending on a driver error type
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "23505")
}
