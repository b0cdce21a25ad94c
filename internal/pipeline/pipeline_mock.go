package pipeline

import (
	"context"

	"github.com/imagemill/imagemill/internal/model"
)

type mockPublisher struct {
	active    bool
	publishFn func(ctx context.Context, artifacts []model.DerivedArtifact, baseName string) map[model.Role]model.PublishOutcome
}

func (m *mockPublisher) Active() bool { return m.active }

func (m *mockPublisher) Publish(ctx context.Context, artifacts []model.DerivedArtifact, baseName string) map[model.Role]model.PublishOutcome {
	if m.publishFn != nil {
		return m.publishFn(ctx, artifacts, baseName)
	}
	return map[model.Role]model.PublishOutcome{}
}
