package worker

import (
	"context"

	"github.com/imagemill/imagemill/internal/model"
)

type mockDeriverService struct {
	processFn func(ctx context.Context, src model.SourceImage) (*model.DerivationResult, error)
}

func (m *mockDeriverService) ProcessImage(ctx context.Context, src model.SourceImage) (*model.DerivationResult, error) {
	return m.processFn(ctx, src)
}
