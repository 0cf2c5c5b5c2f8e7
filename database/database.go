package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/truemediaorg/detectbot/database/db"
)

const uniqueViolation = "23505"

const detectionColumns = `
		id,
		platform,
		source_id,
		author_handle,
		captured_at,
		image_url,
		ai_probability,
		classification,
		confidence,
		short_id,
		reply_id,
		processing_time_ms,
		provider,
		image_bytes,
		content_type,
		description,
		meta_description,
		detailed_description,
		confidence_narrative,
		created_at,
		deleted_at`

// Database is the Postgres backend.
type Database struct {
	connString string
	pool       *pgxpool.Pool
}

func NewDatabase(connString string) *Database {
	return &Database{
		connString: connString,
	}
}

func (d *Database) Connect(ctx context.Context) error {
	var err error
	d.pool, err = pgxpool.New(ctx, d.connString)
	if err != nil {
		return err
	}
	return d.pool.Ping(ctx)
}

func (d *Database) Disconnect() {
	d.pool.Close()
}

func (d *Database) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

func (d *Database) InsertDetection(ctx context.Context, row db.Detection) error {
	_, err := d.pool.Exec(ctx, `
	INSERT INTO detections (`+detectionColumns+`)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		row.ID,
		row.Platform,
		row.SourceID,
		row.AuthorHandle,
		row.CapturedAt.UTC(),
		row.ImageURL,
		row.AIProbability,
		row.Classification,
		row.Confidence,
		row.ShortID,
		row.ReplyID,
		row.ProcessingTimeMs,
		row.Provider,
		row.ImageBytes,
		row.ContentType,
		row.Description,
		row.MetaDescription,
		row.DetailedDescription,
		row.ConfidenceNarrative,
		row.CreatedAt.UTC(), // the DB stores timezones and assumes UTC
		row.DeletedAt,
	)
	return translateInsertError(err)
}

func translateInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if strings.Contains(pgErr.ConstraintName, "short_id") {
			return ErrDuplicateShortID
		}
		return ErrDuplicateID
	}
	return err
}

// UpdateReplyID sets the reply id unless a different one is already stored.
func (d *Database) UpdateReplyID(ctx context.Context, id string, replyID string) (bool, error) {
	tag, err := d.pool.Exec(ctx, `
	UPDATE detections SET reply_id = $2
	WHERE id = $1 AND (reply_id IS NULL OR reply_id = $2)`,
		id,
		replyID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (d *Database) UpdateEnrichment(ctx context.Context, id string, description, metaDescription, detailedDescription, confidenceNarrative string) error {
	_, err := d.pool.Exec(ctx, `
	UPDATE detections SET
		description = $2,
		meta_description = $3,
		detailed_description = $4,
		confidence_narrative = $5
	WHERE id = $1`,
		id,
		description,
		metaDescription,
		detailedDescription,
		confidenceNarrative,
	)
	return err
}

// SetShortID assigns a short id to a record that has none.
func (d *Database) SetShortID(ctx context.Context, id string, shortID string) (bool, error) {
	tag, err := d.pool.Exec(ctx, `
	UPDATE detections SET short_id = $2
	WHERE id = $1 AND short_id IS NULL`,
		id,
		shortID,
	)
	if err != nil {
		return false, translateInsertError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (d *Database) SoftDelete(ctx context.Context, shortID string, at time.Time) (bool, error) {
	tag, err := d.pool.Exec(ctx, `
	UPDATE detections SET deleted_at = $2
	WHERE short_id = $1 AND deleted_at IS NULL`,
		shortID,
		at.UTC(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// FindByShortID returns nil without error when no row has the id. Deleted rows are returned.
func (d *Database) FindByShortID(ctx context.Context, shortID string) (*db.Detection, error) {
	return d.findOne(ctx, `SELECT `+detectionColumns+` FROM detections WHERE short_id = $1`, shortID)
}

func (d *Database) FindByID(ctx context.Context, id string) (*db.Detection, error) {
	return d.findOne(ctx, `SELECT `+detectionColumns+` FROM detections WHERE id = $1`, id)
}

func (d *Database) findOne(ctx context.Context, query string, arg any) (*db.Detection, error) {
	rows, err := d.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[db.Detection])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (d *Database) ShortIDExists(ctx context.Context, shortID string) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM detections WHERE short_id = $1)`, shortID).Scan(&exists)
	return exists, err
}

func (d *Database) SourceIDExists(ctx context.Context, platform string, sourceID string) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM detections WHERE platform = $1 AND source_id = $2)`,
		platform,
		sourceID,
	).Scan(&exists)
	return exists, err
}

func (d *Database) Recent(ctx context.Context, limit int) ([]db.Detection, error) {
	rows, err := d.pool.Query(ctx, `
	SELECT `+detectionColumns+`
	FROM detections
	WHERE deleted_at IS NULL
	ORDER BY created_at DESC
	LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[db.Detection])
}

// LatestSourceID returns the highest source id seen for the platform, or "" for an empty table.
func (d *Database) LatestSourceID(ctx context.Context, platform string) (string, error) {
	// For Twitter, IDs are always increasing. Length first so "10" sorts after "9".
	var id string
	err := d.pool.QueryRow(
		ctx,
		`SELECT
			source_id
		FROM detections
		WHERE platform = $1
		ORDER BY length(source_id) DESC, source_id DESC
		LIMIT 1`,
		platform,
	).Scan(&id)
	if err != nil {
		// A blank table is OK and obviously can't return rows
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return id, nil
}
