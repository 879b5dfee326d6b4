package snapbook

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"snapbook/internal/model"
)

const settingsID = "app_config"

// Repository persists participants, photos, quotes and settings in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateParticipant inserts a newly registered participant.
func (r *Repository) CreateParticipant(ctx context.Context, p model.Participant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO participants (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, p.ID, p.Name, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

// GetParticipant returns a participant with its photos.
func (r *Repository) GetParticipant(ctx context.Context, id string) (model.Participant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at
		FROM participants WHERE id = $1
	`, id)
	var p model.Participant
	if err := row.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Participant{}, ErrNotFound
		}
		return model.Participant{}, fmt.Errorf("get participant: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, image_data, taken_at
		FROM photos WHERE participant_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return model.Participant{}, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()
	p.Photos = []model.Photo{}
	for rows.Next() {
		var ph model.Photo
		if err := rows.Scan(&ph.ID, &ph.ImageData, &ph.Timestamp); err != nil {
			return model.Participant{}, fmt.Errorf("scan photo: %w", err)
		}
		p.Photos = append(p.Photos, ph)
	}
	return p, rows.Err()
}

// ListParticipants returns every participant with photos, oldest first.
func (r *Repository) ListParticipants(ctx context.Context) ([]model.Participant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, created_at, updated_at
		FROM participants
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	participants := []model.Participant{}
	index := map[string]int{}
	for rows.Next() {
		p := model.Participant{Photos: []model.Photo{}}
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		index[p.ID] = len(participants)
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	photoRows, err := r.db.QueryContext(ctx, `
		SELECT participant_id, id, image_data, taken_at
		FROM photos
		ORDER BY participant_id, position
	`)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer photoRows.Close()
	for photoRows.Next() {
		var owner string
		var ph model.Photo
		if err := photoRows.Scan(&owner, &ph.ID, &ph.ImageData, &ph.Timestamp); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		// photos inserted after the participant query are ignored
		if i, ok := index[owner]; ok {
			participants[i].Photos = append(participants[i].Photos, ph)
		}
	}
	return participants, photoRows.Err()
}

// DeleteParticipant removes a participant; photos cascade.
func (r *Repository) DeleteParticipant(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM participants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendPhoto locks the participant row, checks the photo count and inserts
// the photo at the next position.
func (r *Repository) AppendPhoto(ctx context.Context, participantID string, photo model.Photo, limit int) (model.Participant, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Participant{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	err = tx.QueryRowContext(ctx, `SELECT id FROM participants WHERE id = $1 FOR UPDATE`, participantID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Participant{}, ErrNotFound
		}
		return model.Participant{}, fmt.Errorf("lock participant: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM photos WHERE participant_id = $1`, participantID).Scan(&count); err != nil {
		return model.Participant{}, fmt.Errorf("count photos: %w", err)
	}
	if count >= limit {
		return model.Participant{}, ErrPhotoLimit
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO photos (id, participant_id, position, image_data, taken_at)
		VALUES ($1, $2, $3, $4, $5)
	`, photo.ID, participantID, count, photo.ImageData, photo.Timestamp); err != nil {
		return model.Participant{}, fmt.Errorf("insert photo: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE participants SET updated_at = $2 WHERE id = $1`, participantID, photo.Timestamp); err != nil {
		return model.Participant{}, fmt.Errorf("touch participant: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Participant{}, fmt.Errorf("commit: %w", err)
	}
	return r.GetParticipant(ctx, participantID)
}

// ListQuotes returns the quote pool in insertion order.
func (r *Repository) ListQuotes(ctx context.Context) ([]model.Quote, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, text FROM quotes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	defer rows.Close()
	quotes := []model.Quote{}
	for rows.Next() {
		var q model.Quote
		if err := rows.Scan(&q.ID, &q.Text); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// AddQuote appends a quote to the pool.
func (r *Repository) AddQuote(ctx context.Context, text string) (model.Quote, error) {
	q := model.Quote{Text: text}
	if err := r.db.QueryRowContext(ctx, `INSERT INTO quotes (text) VALUES ($1) RETURNING id`, text).Scan(&q.ID); err != nil {
		return model.Quote{}, fmt.Errorf("insert quote: %w", err)
	}
	return q, nil
}

// GetSettings returns the saved settings or the defaults.
func (r *Repository) GetSettings(ctx context.Context) (model.Settings, error) {
	s, err := scanSettings(r.db.QueryRowContext(ctx, `
		SELECT accepting_submissions, closed_at, yearbook_generated, yearbook_generated_at
		FROM settings WHERE id = $1
	`, settingsID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.DefaultSettings(), nil
	}
	if err != nil {
		return model.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return s, nil
}

// UpdateSettings applies fn to the settings row under a row lock.
func (r *Repository) UpdateSettings(ctx context.Context, fn func(*model.Settings)) (model.Settings, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Settings{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	def := model.DefaultSettings()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO settings (id, accepting_submissions, yearbook_generated)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, settingsID, def.AcceptingSubmissions, def.YearbookGenerated); err != nil {
		return model.Settings{}, fmt.Errorf("seed settings: %w", err)
	}

	s, err := scanSettings(tx.QueryRowContext(ctx, `
		SELECT accepting_submissions, closed_at, yearbook_generated, yearbook_generated_at
		FROM settings WHERE id = $1 FOR UPDATE
	`, settingsID))
	if err != nil {
		return model.Settings{}, fmt.Errorf("lock settings: %w", err)
	}
	fn(&s)

	if _, err := tx.ExecContext(ctx, `
		UPDATE settings
		SET accepting_submissions = $2, closed_at = $3, yearbook_generated = $4, yearbook_generated_at = $5
		WHERE id = $1
	`, settingsID, s.AcceptingSubmissions, s.ClosedAt, s.YearbookGenerated, s.YearbookGeneratedAt); err != nil {
		return model.Settings{}, fmt.Errorf("update settings: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Settings{}, fmt.Errorf("commit: %w", err)
	}
	return s, nil
}

func scanSettings(row *sql.Row) (model.Settings, error) {
	var s model.Settings
	var closedAt, generatedAt sql.NullTime
	if err := row.Scan(&s.AcceptingSubmissions, &closedAt, &s.YearbookGenerated, &generatedAt); err != nil {
		return model.Settings{}, err
	}
	s.ClosedAt = timePtr(closedAt)
	s.YearbookGeneratedAt = timePtr(generatedAt)
	return s, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
