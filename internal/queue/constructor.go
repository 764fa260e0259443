package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/mit45/AutoSocial-Ai/internal/models"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Publisher schedules publish attempts on the asynq queue.
type Publisher struct {
	client enqueuer
}

func NewPublisher(client *asynq.Client) *Publisher {
	return &Publisher{client: client}
}

func newPublishTask(payload PublishPostPayload, delay time.Duration) (*asynq.Task, []asynq.Option, error) {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}

	task := asynq.NewTask(TaskTypePublishPost, taskPayload)
	opts := []asynq.Option{
		asynq.ProcessIn(delay),
		asynq.MaxRetry(0),
		asynq.TaskID(fmt.Sprintf("publish:%d:%s", payload.PostID, payload.Rendition)),
		asynq.Timeout(5 * time.Minute),
	}
	return task, opts, nil
}

// EnqueuePublish schedules one publish attempt. A task already queued for
// the same post and rendition is left in place.
func (p *Publisher) EnqueuePublish(ctx context.Context, postID int64, r models.Rendition, delay time.Duration) error {
	payload := PublishPostPayload{PostID: postID, Rendition: string(r)}
	task, opts, err := newPublishTask(payload, delay)
	if err != nil {
		return err
	}

	_, err = p.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		slog.Info("publish task already queued", "post_id", postID, "rendition", r)
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("publish task scheduled", "post_id", postID, "rendition", r, "delay", delay)
	return nil
}
