package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/mit45/AutoSocial-Ai/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	CreateUnlessRecent(ctx context.Context, post *models.Post, since time.Time) (int64, bool, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	List(ctx context.Context, status models.PostStatus) ([]*models.Post, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.Post, error)
	CountCreatedSince(ctx context.Context, accountID *int64, since time.Time) (int, error)
	Approve(ctx context.Context, id int64) (bool, error)
	SetSchedule(ctx context.Context, id int64, r models.Rendition, at *time.Time) error
	ClearSchedules(ctx context.Context, id int64) error
	SetStoryImageURL(ctx context.Context, id int64, url string) error
	MarkPublished(ctx context.Context, id int64, r models.Rendition, externalID string, at time.Time, accountID *int64) error
	MarkFailed(ctx context.Context, id int64, r models.Rendition, message string) error
	TryLockPublish(ctx context.Context, id int64, r models.Rendition) (func(), bool, error)
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, account_id, topic, caption, hashtags, image_prompt, image_path, image_url,
	story_image_url, type, status, scheduled_at_post, scheduled_at_story, published_at_post,
	published_at_story, ig_post_id_post, ig_post_id_story, error_message, error_post, error_story,
	created_at, updated_at`

type renditionColumns struct {
	scheduled, published, externalID, errorMsg, otherError string
}

var renditionCols = map[models.Rendition]renditionColumns{
	models.RenditionPost:  {"scheduled_at_post", "published_at_post", "ig_post_id_post", "error_post", "error_story"},
	models.RenditionStory: {"scheduled_at_story", "published_at_story", "ig_post_id_story", "error_story", "error_post"},
}

func columnsFor(r models.Rendition) (renditionColumns, error) {
	cols, ok := renditionCols[r]
	if !ok {
		return renditionColumns{}, fmt.Errorf("unknown rendition %q", r)
	}
	return cols, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var p models.Post
	err := row.Scan(&p.ID, &p.AccountID, &p.Topic, &p.Caption, pq.Array(&p.Hashtags), &p.ImagePrompt,
		&p.ImagePath, &p.ImageURL, &p.StoryImageURL, &p.Type, &p.Status, &p.ScheduledAtPost,
		&p.ScheduledAtStory, &p.PublishedAtPost, &p.PublishedAtStory, &p.ExternalIDPost,
		&p.ExternalIDStory, &p.ErrorMessage, &p.ErrorPost, &p.ErrorStory, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (account_id, topic, caption, hashtags, image_prompt, image_path, image_url, type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	args := []any{post.AccountID, post.Topic, post.Caption, pq.Array(post.Hashtags), post.ImagePrompt,
		post.ImagePath, post.ImageURL, post.Type, post.Status}

	var id int64
	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

// CreateUnlessRecent inserts the post only when the account has no post
// created at or after since. The check and insert are one statement.
func (r *postRepository) CreateUnlessRecent(ctx context.Context, post *models.Post, since time.Time) (int64, bool, error) {
	query := `
		INSERT INTO posts (account_id, topic, caption, hashtags, image_prompt, image_path, image_url, type, status)
		SELECT $1::bigint, $2::text, $3::text, $4::text[], $5::text, $6::text, $7::text, $8::text, $9::text
		WHERE NOT EXISTS (
			SELECT 1 FROM posts WHERE account_id IS NOT DISTINCT FROM $1::bigint AND created_at >= $10
		)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query, post.AccountID, post.Topic, post.Caption, pq.Array(post.Hashtags),
		post.ImagePrompt, post.ImagePath, post.ImageURL, post.Type, post.Status, since).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		slog.Info(err.Error())
		return 0, false, err
	}

	return id, true, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return post, nil
}

func (r *postRepository) List(ctx context.Context, status models.PostStatus) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	return r.queryPosts(ctx, query, args...)
}

// ListDue returns posts with at least one elapsed publish-at field. Published
// posts are included so a pending second rendition is not stranded.
func (r *postRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE status IN ('approved', 'published')
		AND ((scheduled_at_post IS NOT NULL AND scheduled_at_post <= $1)
			OR (scheduled_at_story IS NOT NULL AND scheduled_at_story <= $1))
		ORDER BY id`

	return r.queryPosts(ctx, query, now)
}

func (r *postRepository) queryPosts(ctx context.Context, query string, args ...any) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) CountCreatedSince(ctx context.Context, accountID *int64, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM posts WHERE account_id IS NOT DISTINCT FROM $1::bigint AND created_at >= $2`

	var n int
	if err := r.db.QueryRowContext(ctx, query, accountID, since).Scan(&n); err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return n, nil
}

// Approve moves a post to approved unless it is already published.
func (r *postRepository) Approve(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE posts
		SET status = 'approved', error_message = '', updated_at = NOW()
		WHERE id = $1 AND status <> 'published'
	`
	return r.execAffected(ctx, query, id)
}

func (r *postRepository) SetSchedule(ctx context.Context, id int64, rend models.Rendition, at *time.Time) error {
	cols, err := columnsFor(rend)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE posts SET %s = $2, updated_at = NOW() WHERE id = $1`, cols.scheduled)
	return r.exec(ctx, query, id, at)
}

func (r *postRepository) ClearSchedules(ctx context.Context, id int64) error {
	query := `UPDATE posts SET scheduled_at_post = NULL, scheduled_at_story = NULL, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id)
}

func (r *postRepository) SetStoryImageURL(ctx context.Context, id int64, url string) error {
	query := `UPDATE posts SET story_image_url = $2, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id, url)
}

// MarkPublished writes only the given rendition's outcome columns.
func (r *postRepository) MarkPublished(ctx context.Context, id int64, rend models.Rendition, externalID string, at time.Time, accountID *int64) error {
	cols, err := columnsFor(rend)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE posts
		SET %s = $2, %s = $3, %s = NULL, %s = '',
			error_message = %s,
			account_id = COALESCE($4, account_id),
			status = 'published',
			updated_at = NOW()
		WHERE id = $1
	`, cols.published, cols.externalID, cols.scheduled, cols.errorMsg, cols.otherError)
	return r.exec(ctx, query, id, at, externalID, accountID)
}

// MarkFailed records the rendition's error. Status stays published when any
// rendition is live.
func (r *postRepository) MarkFailed(ctx context.Context, id int64, rend models.Rendition, message string) error {
	cols, err := columnsFor(rend)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE posts
		SET %s = $2, error_message = $2, %s = NULL,
			status = CASE
				WHEN published_at_post IS NOT NULL OR published_at_story IS NOT NULL THEN 'published'
				ELSE 'failed'
			END,
			updated_at = NOW()
		WHERE id = $1
	`, cols.errorMsg, cols.scheduled)
	return r.exec(ctx, query, id, message)
}

// TryLockPublish takes a session advisory lock for (post, rendition) on a
// dedicated connection. The returned func releases it.
func (r *postRepository) TryLockPublish(ctx context.Context, id int64, rend models.Rendition) (func(), bool, error) {
	key := id << 1
	if rend == models.RenditionStory {
		key |= 1
	}

	conn, err := r.db.Conn(ctx)
	if err != nil {
		slog.Info(err.Error())
		return nil, false, err
	}

	var ok bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&ok); err != nil {
		conn.Close()
		slog.Info(err.Error())
		return nil, false, err
	}
	if !ok {
		conn.Close()
		return nil, false, nil
	}

	unlock := func() {
		if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, key); err != nil {
			slog.Info(err.Error())
		}
		conn.Close()
	}
	return unlock, true, nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	return r.exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
}

func (r *postRepository) exec(ctx context.Context, query string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) execAffected(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected > 0, nil
}
