package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/mit45/AutoSocial-Ai/internal/models"
	"github.com/mit45/AutoSocial-Ai/internal/service"
	"github.com/mit45/AutoSocial-Ai/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	err   error
	tasks []*asynq.Task
	opts  [][]asynq.Option
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.TaskInfo{ID: "t1"}, nil
}

type fakePublishService struct {
	err  error
	res  *transfer.PublishResult
	reqs []*transfer.PublishRequest
}

func (f *fakePublishService) Publish(ctx context.Context, req *transfer.PublishRequest) (*transfer.PublishResult, error) {
	f.reqs = append(f.reqs, req)
	return f.res, f.err
}

func (f *fakePublishService) Republish(ctx context.Context, req *transfer.PublishRequest) (*transfer.PublishResult, error) {
	return f.Publish(ctx, req)
}

func optionValue(opts []asynq.Option, typ asynq.OptionType) any {
	for _, o := range opts {
		if o.Type() == typ {
			return o.Value()
		}
	}
	return nil
}

func TestEnqueuePublish(t *testing.T) {
	enq := &fakeEnqueuer{}
	p := &Publisher{client: enq}

	require.NoError(t, p.EnqueuePublish(context.Background(), 7, models.RenditionStory, time.Minute))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskTypePublishPost, enq.tasks[0].Type())

	var payload PublishPostPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, PublishPostPayload{PostID: 7, Rendition: "story"}, payload)

	assert.Equal(t, "publish:7:story", optionValue(enq.opts[0], asynq.TaskIDOpt))
	assert.Equal(t, 0, optionValue(enq.opts[0], asynq.MaxRetryOpt))
	assert.Equal(t, time.Minute, optionValue(enq.opts[0], asynq.ProcessInOpt))
}

func TestEnqueuePublishIgnoresDuplicateTask(t *testing.T) {
	p := &Publisher{client: &fakeEnqueuer{err: asynq.ErrTaskIDConflict}}
	assert.NoError(t, p.EnqueuePublish(context.Background(), 7, models.RenditionPost, time.Minute))

	boom := errors.New("redis down")
	p = &Publisher{client: &fakeEnqueuer{err: boom}}
	assert.ErrorIs(t, p.EnqueuePublish(context.Background(), 7, models.RenditionPost, time.Minute), boom)
}

func publishTask(t *testing.T, postID int64, rendition string) *asynq.Task {
	t.Helper()
	b, err := json.Marshal(PublishPostPayload{PostID: postID, Rendition: rendition})
	require.NoError(t, err)
	return asynq.NewTask(TaskTypePublishPost, b)
}

func TestHandlePublishPostTask(t *testing.T) {
	ps := &fakePublishService{res: &transfer.PublishResult{Success: true}}
	q := NewQueue(ps)

	require.NoError(t, q.HandlePublishPostTask(context.Background(), publishTask(t, 3, "post")))
	require.Len(t, ps.reqs, 1)
	assert.Equal(t, int64(3), ps.reqs[0].PostID)
	assert.Equal(t, "post", ps.reqs[0].PostType)

	// A recorded publish failure is not a task failure.
	ps.res = &transfer.PublishResult{Success: false, Error: "token expired"}
	assert.NoError(t, q.HandlePublishPostTask(context.Background(), publishTask(t, 3, "post")))
}

func TestHandlePublishPostTaskSkipsRetryOnRejection(t *testing.T) {
	for _, sentinel := range []error{service.ErrNotFound, service.ErrInvalid, service.ErrConflict} {
		ps := &fakePublishService{err: fmt.Errorf("post 3: %w", sentinel)}
		err := NewQueue(ps).HandlePublishPostTask(context.Background(), publishTask(t, 3, "post"))
		assert.ErrorIs(t, err, asynq.SkipRetry)
	}

	boom := errors.New("db down")
	err := NewQueue(&fakePublishService{err: boom}).HandlePublishPostTask(context.Background(), publishTask(t, 3, "post"))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	err = NewQueue(&fakePublishService{}).HandlePublishPostTask(context.Background(), asynq.NewTask(TaskTypePublishPost, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
