package queue

import (
	"github.com/mit45/AutoSocial-Ai/internal/service"
)

// Queue consumes delayed publish tasks.
type Queue struct {
	ps service.PublishService
}

func NewQueue(ps service.PublishService) *Queue {
	return &Queue{ps: ps}
}

const TaskTypePublishPost = "publish:post"

type PublishPostPayload struct {
	PostID    int64  `json:"post_id"`
	Rendition string `json:"rendition"`
}
