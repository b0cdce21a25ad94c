package service

import (
	"context"

	"github.com/imagemill/imagemill/internal/model"
)

type mockRepo struct {
	createFn  func(ctx context.Context, rec *model.DerivationRecord) error
	getFn     func(ctx context.Context, id string) (*model.DerivationRecord, error)
	getListFn func(ctx context.Context, req *model.ListRequest) ([]model.DerivationRecord, error)
	deleteFn  func(ctx context.Context, id string) error
}

func (m *mockRepo) Create(ctx context.Context, rec *model.DerivationRecord) error {
	if m.createFn != nil {
		return m.createFn(ctx, rec)
	}
	return nil
}

func (m *mockRepo) Get(ctx context.Context, id string) (*model.DerivationRecord, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.ErrRecordNotFound
}

func (m *mockRepo) GetList(ctx context.Context, req *model.ListRequest) ([]model.DerivationRecord, error) {
	if m.getListFn != nil {
		return m.getListFn(ctx, req)
	}
	return nil, nil
}

func (m *mockRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockPublisher struct {
	active      bool
	publishFn   func(ctx context.Context, artifacts []model.DerivedArtifact, baseName string) map[model.Role]model.PublishOutcome
	urlsFn      func(remoteID, originalURL string) model.ResponsiveURLSet
	unpublishFn func(ctx context.Context, remoteID string) bool
	pingFn      func(ctx context.Context) error
}

func (m *mockPublisher) Active() bool { return m.active }

func (m *mockPublisher) Publish(ctx context.Context, artifacts []model.DerivedArtifact, baseName string) map[model.Role]model.PublishOutcome {
	if m.publishFn != nil {
		return m.publishFn(ctx, artifacts, baseName)
	}
	return map[model.Role]model.PublishOutcome{}
}

func (m *mockPublisher) ResponsiveURLs(remoteID, originalURL string) model.ResponsiveURLSet {
	if m.urlsFn != nil {
		return m.urlsFn(remoteID, originalURL)
	}
	return model.ResponsiveURLSet{Original: originalURL}
}

func (m *mockPublisher) Unpublish(ctx context.Context, remoteID string) bool {
	if m.unpublishFn != nil {
		return m.unpublishFn(ctx, remoteID)
	}
	return true
}

func (m *mockPublisher) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

type mockDeriver struct {
	deriveFn func(ctx context.Context, src model.SourceImage) (*model.DerivationResult, error)
}

func (m *mockDeriver) Derive(ctx context.Context, src model.SourceImage) (*model.DerivationResult, error) {
	if m.deriveFn != nil {
		return m.deriveFn(ctx, src)
	}
	return &model.DerivationResult{}, nil
}
