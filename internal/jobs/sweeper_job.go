package job

import (
	"context"
	"log/slog"

	"github.com/mit45/AutoSocial-Ai/internal/service"
)

type SweepJob struct {
	sweeper service.SweeperService
}

func NewSweepJob(sweeper service.SweeperService) *SweepJob {
	return &SweepJob{sweeper: sweeper}
}

func (j *SweepJob) Run(ctx context.Context) {
	res, err := j.sweeper.Sweep(ctx)
	if err != nil {
		slog.Error("scheduled sweep failed", "error", err)
		return
	}
	for _, msg := range res.Errors {
		slog.Warn("scheduled publish failed", "error", msg)
	}
}
