package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const timeLayout = time.RFC3339Nano

var _ PostRepository = (*PostRepositoryImpl)(nil)

// PostRepositoryImpl handles database operations for migrated posts
type PostRepositoryImpl struct {
	db *DB
}

func NewPostRepository(db *DB) *PostRepositoryImpl {
	return &PostRepositoryImpl{db: db}
}

// UpsertPost inserts the post or replaces the stored content for the same ID.
// created_at is kept from the first insert.
func (r *PostRepositoryImpl) UpsertPost(ctx context.Context, post Post) error {
	if err := validatePost(post); err != nil {
		return err
	}

	images := post.Images
	if images == nil {
		images = []string{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("%w: failed to encode images: %v", ErrValidation, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO posts (id, title, body, excerpt, reading_time, images, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			excerpt = excluded.excerpt,
			reading_time = excluded.reading_time,
			images = excluded.images,
			published_at = excluded.published_at,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
	`, post.ID, post.Title, post.Body, post.Excerpt, post.ReadingTime, string(imagesJSON), formatTime(post.PublishedAt))

	if err != nil {
		return fmt.Errorf("%w: failed to upsert post %s: %v", ErrUnavailable, post.ID, err)
	}

	return nil
}

// GetPost returns nil when no post with the ID has been migrated.
func (r *PostRepositoryImpl) GetPost(ctx context.Context, id string) (*Post, error) {
	var post Post
	var imagesJSON string
	var publishedAt sql.NullString
	var createdAt, updatedAt string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, body, excerpt, reading_time, images, published_at, created_at, updated_at
		FROM posts
		WHERE id = ?
	`, id).Scan(&post.ID, &post.Title, &post.Body, &post.Excerpt, &post.ReadingTime,
		&imagesJSON, &publishedAt, &createdAt, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get post %s: %v", ErrUnavailable, id, err)
	}

	if err := json.Unmarshal([]byte(imagesJSON), &post.Images); err != nil {
		return nil, fmt.Errorf("failed to decode images for post %s: %w", id, err)
	}

	if publishedAt.Valid {
		post.PublishedAt = parseTime(publishedAt.String)
	}
	post.CreatedAt = parseTime(createdAt)
	post.UpdatedAt = parseTime(updatedAt)

	return &post, nil
}

func (r *PostRepositoryImpl) GetPostCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get post count: %v", ErrUnavailable, err)
	}
	return count, nil
}

func validatePost(post Post) error {
	switch {
	case strings.TrimSpace(post.ID) == "":
		return fmt.Errorf("%w: post ID is empty", ErrValidation)
	case post.ReadingTime < 1:
		return fmt.Errorf("%w: post %s has reading time %d", ErrValidation, post.ID, post.ReadingTime)
	}
	return nil
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
