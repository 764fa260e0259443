package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mit45/AutoSocial-Ai/internal/models"
	"github.com/mit45/AutoSocial-Ai/internal/repository"
	"github.com/mit45/AutoSocial-Ai/internal/telemetry"
	"github.com/mit45/AutoSocial-Ai/internal/transfer"
)

type SweeperService interface {
	// Sweep publishes every rendition whose publish-at time has elapsed.
	// One item's failure never stops the others.
	Sweep(ctx context.Context) (*transfer.SweepResult, error)
}

type sweeperService struct {
	pr      repository.PostRepository
	ps      PublishService
	metrics *telemetry.Metrics
	now     func() time.Time
}

func NewSweeperService(pr repository.PostRepository, ps PublishService, metrics *telemetry.Metrics, now func() time.Time) SweeperService {
	if now == nil {
		now = time.Now
	}
	return &sweeperService{
		pr:      pr,
		ps:      ps,
		metrics: metrics,
		now:     now,
	}
}

func (s *sweeperService) Sweep(ctx context.Context) (*transfer.SweepResult, error) {
	started := time.Now()
	now := s.now().UTC()

	posts, err := s.pr.ListDue(ctx, now)
	if err != nil {
		return nil, err
	}

	result := &transfer.SweepResult{Errors: []string{}}
	for _, post := range posts {
		for _, r := range post.DueRenditions(now) {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			result.Checked++

			res, err := s.publishOne(ctx, post, r)
			switch {
			case err != nil:
				result.Errors = append(result.Errors, fmt.Sprintf("post %d %s: %v", post.ID, r, err))
			case !res.Success:
				result.Errors = append(result.Errors, fmt.Sprintf("post %d %s: %s", post.ID, r, res.Error))
			default:
				result.Published++
			}
		}
	}

	s.metrics.RecordSweep(ctx, time.Since(started).Seconds())
	if result.Checked > 0 {
		slog.Info("scheduled sweep finished", "checked", result.Checked, "published", result.Published, "errors", len(result.Errors))
	}
	return result, nil
}

// publishOne isolates one rendition: panics become errors, and a rejected
// attempt clears the publish-at field so the item is not retried every tick.
func (s *sweeperService) publishOne(ctx context.Context, post *models.Post, r models.Rendition) (res *transfer.PublishResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic while publishing: %v", p)
			slog.Error("sweeper recovered from panic", "post_id", post.ID, "rendition", r, "panic", p)
			s.recordFailure(ctx, post.ID, r, err)
		}
	}()

	res, err = s.ps.Publish(ctx, &transfer.PublishRequest{PostID: post.ID, PostType: string(r)})
	if err == nil {
		return res, nil
	}

	if errors.Is(err, ErrConflict) {
		current, getErr := s.pr.GetByID(ctx, post.ID)
		if getErr == nil && current != nil && current.PublishedAt(r) != nil {
			if clearErr := s.pr.SetSchedule(ctx, post.ID, r, nil); clearErr != nil {
				slog.Warn("clearing schedule failed", "post_id", post.ID, "rendition", r, "error", clearErr)
			}
		}
		return nil, err
	}

	s.recordFailure(ctx, post.ID, r, err)
	return nil, err
}

func (s *sweeperService) recordFailure(ctx context.Context, postID int64, r models.Rendition, cause error) {
	if err := s.pr.MarkFailed(ctx, postID, r, cause.Error()); err != nil {
		slog.Error("recording sweep failure failed", "post_id", postID, "rendition", r, "error", err)
	}
}
