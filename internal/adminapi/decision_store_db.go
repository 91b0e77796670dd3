package adminapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sqliteDialector "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrUnsupportedDialect indicates that no GORM dialector is available for the scheme.
	ErrUnsupportedDialect = errors.New("decision_store.unsupported_dialect")

	errEmptyDatabaseURL    = errors.New("decision_store.empty_database_url")
	errSQLiteEmptyPath     = errors.New("decision_store.sqlite.empty_path")
	errSQLiteInvalidURL    = errors.New("decision_store.sqlite.invalid_url")
	errUnsupportedNoScheme = errors.New("decision_store.unsupported_no_scheme")
)

// DatabaseDecisionStore persists decisions using GORM.
type DatabaseDecisionStore struct {
	db          *gorm.DB
	driverLabel string
}

// Driver exposes the selected database driver label.
func (store *DatabaseDecisionStore) Driver() string {
	return store.driverLabel
}

type decisionRecord struct {
	DecisionID    string `gorm:"column:decision_id;primaryKey"`
	Kind          string `gorm:"column:kind;index;not null"`
	SubjectID     string `gorm:"column:subject_id;index;not null"`
	TargetID      string `gorm:"column:target_id;not null;default:''"`
	Actor         string `gorm:"column:actor;not null"`
	Note          string `gorm:"column:note;not null;default:''"`
	CreatedAtUnix int64  `gorm:"column:created_at_unix;index;not null"`
}

func (decisionRecord) TableName() string {
	return "admin_decisions"
}

// NewDatabaseDecisionStore opens databaseURL (postgres:// or sqlite://) and migrates the schema.
func NewDatabaseDecisionStore(ctx context.Context, databaseURL string) (*DatabaseDecisionStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("decision_store.open: %w", errEmptyDatabaseURL)
	}
	dialector, driverLabel, err := resolveDialector(databaseURL)
	if err != nil {
		return nil, err
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if openErr != nil {
		return nil, fmt.Errorf("decision_store.open.%s: %w", driverLabel, openErr)
	}
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(&decisionRecord{}); migrateErr != nil {
		return nil, fmt.Errorf("decision_store.migrate.%s: %w", driverLabel, migrateErr)
	}
	return &DatabaseDecisionStore{
		db:          gormDB,
		driverLabel: driverLabel,
	}, nil
}

func (store *DatabaseDecisionStore) Record(ctx context.Context, decision Decision) error {
	record := decisionRecord{
		DecisionID:    decision.ID,
		Kind:          decision.Kind,
		SubjectID:     decision.SubjectID,
		TargetID:      decision.TargetID,
		Actor:         decision.Actor,
		Note:          decision.Note,
		CreatedAtUnix: decision.CreatedAt.UnixNano(),
	}
	if err := store.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("decision_store.record.%s: %w", store.driverLabel, err)
	}
	return nil
}

func (store *DatabaseDecisionStore) List(ctx context.Context, limit int) ([]Decision, error) {
	query := store.db.WithContext(ctx).Order("created_at_unix DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var records []decisionRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("decision_store.list.%s: %w", store.driverLabel, err)
	}
	decisions := make([]Decision, 0, len(records))
	for _, record := range records {
		decisions = append(decisions, Decision{
			ID:        record.DecisionID,
			Kind:      record.Kind,
			SubjectID: record.SubjectID,
			TargetID:  record.TargetID,
			Actor:     record.Actor,
			Note:      record.Note,
			CreatedAt: time.Unix(0, record.CreatedAtUnix).UTC(),
		})
	}
	return decisions, nil
}

func resolveDialector(databaseURL string) (gorm.Dialector, string, error) {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("decision_store.parse_url: %w", err)
	}
	if parsed.Scheme == "" {
		return nil, "", fmt.Errorf("decision_store.dialect: %w", errUnsupportedNoScheme)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return postgres.Open(databaseURL), "postgres", nil
	case "sqlite", "sqlite3":
		dsn, dsnErr := buildSQLiteDSN(parsed)
		if dsnErr != nil {
			return nil, "", fmt.Errorf("decision_store.sqlite: %w", dsnErr)
		}
		return sqliteDialector.Open(dsn), "sqlite", nil
	default:
		return nil, "", fmt.Errorf("decision_store.dialect.%s: %w", strings.ToLower(parsed.Scheme), ErrUnsupportedDialect)
	}
}

func buildSQLiteDSN(parsed *url.URL) (string, error) {
	if parsed == nil {
		return "", errSQLiteInvalidURL
	}
	var builder strings.Builder
	switch {
	case parsed.Opaque != "":
		builder.WriteString(parsed.Opaque)
	case parsed.Host != "":
		builder.WriteString(parsed.Host)
		if parsed.Path != "" {
			if !strings.HasPrefix(parsed.Path, "/") {
				builder.WriteString("/")
			}
			builder.WriteString(parsed.Path)
		}
	default:
		builder.WriteString(parsed.Path)
	}
	if builder.Len() == 0 {
		return "", errSQLiteEmptyPath
	}
	if parsed.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(parsed.RawQuery)
	}
	return builder.String(), nil
}
