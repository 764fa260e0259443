package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/mit45/AutoSocial-Ai/internal/service"
	"github.com/mit45/AutoSocial-Ai/internal/transfer"
)

func (j *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode publish payload: %v: %w", err, asynq.SkipRetry)
	}

	res, err := j.ps.Publish(ctx, &transfer.PublishRequest{
		PostID:   payload.PostID,
		PostType: payload.Rendition,
	})
	if err != nil {
		if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrInvalid) || errors.Is(err, service.ErrConflict) {
			slog.Warn("publish task rejected", "post_id", payload.PostID, "rendition", payload.Rendition, "error", err)
			return fmt.Errorf("publish post %d: %v: %w", payload.PostID, err, asynq.SkipRetry)
		}
		return err
	}

	// The failure is already recorded on the post.
	if !res.Success {
		slog.Warn("queued publish failed", "post_id", payload.PostID, "rendition", res.Rendition, "error", res.Error)
	}
	return nil
}
