package job

import (
	"context"
	"log/slog"

	"github.com/mit45/AutoSocial-Ai/internal/service"
)

type AutomationJob struct {
	automation service.AutomationService
}

func NewAutomationJob(automation service.AutomationService) *AutomationJob {
	return &AutomationJob{automation: automation}
}

func (j *AutomationJob) Run(ctx context.Context) {
	n, err := j.automation.EvaluateAll(ctx)
	if err != nil {
		slog.Error("automation tick finished with errors", "generated", n, "error", err)
		return
	}
	if n > 0 {
		slog.Info("automation tick finished", "generated", n)
	}
}
