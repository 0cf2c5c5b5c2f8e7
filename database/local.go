package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/truemediaorg/detectbot/database/db"
)

// LocalDatabase is a single-file SQLite backend for development and tests.
type LocalDatabase struct {
	orm *gorm.DB
}

func OpenLocal(path string) (*LocalDatabase, error) {
	orm, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := orm.AutoMigrate(&db.Detection{}); err != nil {
		return nil, err
	}
	return &LocalDatabase{orm: orm}, nil
}

func (l *LocalDatabase) Close() error {
	sqlDB, err := l.orm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (l *LocalDatabase) Ping(ctx context.Context) error {
	sqlDB, err := l.orm.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (l *LocalDatabase) InsertDetection(ctx context.Context, row db.Detection) error {
	row.CapturedAt = row.CapturedAt.UTC()
	row.CreatedAt = row.CreatedAt.UTC()
	err := l.orm.WithContext(ctx).Create(&row).Error
	return translateSQLiteError(err)
}

func translateSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(msg, "UNIQUE constraint failed") {
		if strings.Contains(msg, "short_id") {
			return ErrDuplicateShortID
		}
		return ErrDuplicateID
	}
	return err
}

func (l *LocalDatabase) UpdateReplyID(ctx context.Context, id string, replyID string) (bool, error) {
	result := l.orm.WithContext(ctx).Model(&db.Detection{}).
		Where("id = ? AND (reply_id IS NULL OR reply_id = ?)", id, replyID).
		Update("reply_id", replyID)
	return result.RowsAffected > 0, result.Error
}

func (l *LocalDatabase) UpdateEnrichment(ctx context.Context, id string, description, metaDescription, detailedDescription, confidenceNarrative string) error {
	return l.orm.WithContext(ctx).Model(&db.Detection{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"description":          description,
			"meta_description":     metaDescription,
			"detailed_description": detailedDescription,
			"confidence_narrative": confidenceNarrative,
		}).Error
}

func (l *LocalDatabase) SetShortID(ctx context.Context, id string, shortID string) (bool, error) {
	result := l.orm.WithContext(ctx).Model(&db.Detection{}).
		Where("id = ? AND short_id IS NULL", id).
		Update("short_id", shortID)
	return result.RowsAffected > 0, translateSQLiteError(result.Error)
}

func (l *LocalDatabase) SoftDelete(ctx context.Context, shortID string, at time.Time) (bool, error) {
	result := l.orm.WithContext(ctx).Model(&db.Detection{}).
		Where("short_id = ? AND deleted_at IS NULL", shortID).
		Update("deleted_at", at.UTC())
	return result.RowsAffected > 0, result.Error
}

func (l *LocalDatabase) FindByShortID(ctx context.Context, shortID string) (*db.Detection, error) {
	return l.findOne(ctx, "short_id = ?", shortID)
}

func (l *LocalDatabase) FindByID(ctx context.Context, id string) (*db.Detection, error) {
	return l.findOne(ctx, "id = ?", id)
}

func (l *LocalDatabase) findOne(ctx context.Context, query string, arg any) (*db.Detection, error) {
	var row db.Detection
	err := l.orm.WithContext(ctx).Where(query, arg).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (l *LocalDatabase) ShortIDExists(ctx context.Context, shortID string) (bool, error) {
	var count int64
	err := l.orm.WithContext(ctx).Model(&db.Detection{}).Where("short_id = ?", shortID).Count(&count).Error
	return count > 0, err
}

func (l *LocalDatabase) SourceIDExists(ctx context.Context, platform string, sourceID string) (bool, error) {
	var count int64
	err := l.orm.WithContext(ctx).Model(&db.Detection{}).
		Where("platform = ? AND source_id = ?", platform, sourceID).
		Count(&count).Error
	return count > 0, err
}

func (l *LocalDatabase) Recent(ctx context.Context, limit int) ([]db.Detection, error) {
	var rows []db.Detection
	err := l.orm.WithContext(ctx).
		Where("deleted_at IS NULL").
		Order("created_at desc").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (l *LocalDatabase) LatestSourceID(ctx context.Context, platform string) (string, error) {
	var rows []db.Detection
	err := l.orm.WithContext(ctx).
		Select("source_id").
		Where("platform = ?", platform).
		Order("length(source_id) desc, source_id desc").
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return "", err
	}
	return rows[0].SourceID, nil
}
