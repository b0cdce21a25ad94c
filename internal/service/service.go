// Package service provides business-logic for the app
package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/imagemill/imagemill/internal/batch"
	"github.com/imagemill/imagemill/internal/config"
	"github.com/imagemill/imagemill/internal/encoder"
	"github.com/imagemill/imagemill/internal/model"
	"github.com/imagemill/imagemill/internal/pipeline"
	"github.com/imagemill/imagemill/internal/sweeper"
)

// Publisher - contract for the CDN boundary
type Publisher interface {
	Active() bool
	Publish(ctx context.Context, artifacts []model.DerivedArtifact, baseName string) map[model.Role]model.PublishOutcome
	ResponsiveURLs(remoteID, originalURL string) model.ResponsiveURLSet
	Unpublish(ctx context.Context, remoteID string) bool
	Ping(ctx context.Context) error
}

// DerivationRepo - contract for record persistence; nil disables it
type DerivationRepo interface {
	Create(ctx context.Context, rec *model.DerivationRecord) error
	Get(ctx context.Context, id string) (*model.DerivationRecord, error)
	GetList(ctx context.Context, req *model.ListRequest) ([]model.DerivationRecord, error)
	Delete(ctx context.Context, id string) error
}

// Deriver - contract for the per-item pipeline
type Deriver interface {
	Derive(ctx context.Context, src model.SourceImage) (*model.DerivationResult, error)
}

type ImageService struct {
	cfg         *config.Config
	pub         Publisher
	repo        DerivationRepo
	pipe        Deriver
	coordinator *batch.Coordinator
	sweeper     *sweeper.Sweeper
}

// New sets up the facade: directories are created once here, before any
// pipeline can run, and never touched by application logic afterwards.
func New(cfg *config.Config, pub Publisher, repo DerivationRepo) (*ImageService, error) {
	for _, dir := range cfg.ArtifactDirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create artifact dir %q: %w", dir, err)
		}
	}

	pipe := pipeline.New(cfg, encoder.New(cfg.Profiles), pub)

	return &ImageService{
		cfg:         cfg,
		pub:         pub,
		repo:        repo,
		pipe:        pipe,
		coordinator: batch.New(pipe, cfg.BatchConcurrency),
		sweeper:     sweeper.New(cfg.ArtifactDirs()),
	}, nil
}

// ProcessImage derives all artifacts for one upload and records the outcome.
func (s *ImageService) ProcessImage(ctx context.Context, src model.SourceImage) (*model.DerivationResult, error) {
	res, err := s.pipe.Derive(ctx, src)
	if err != nil {
		return nil, err
	}

	s.persistRecord(ctx, src, res)
	return res, nil
}

// ProcessBatch runs the bounded batch. The repo hook runs after the whole
// batch so record writes never contend with in-flight derivations.
func (s *ImageService) ProcessBatch(ctx context.Context, items []model.SourceImage) model.BatchResult {
	results := s.coordinator.ProcessBatch(ctx, items)

	for i, item := range results {
		if item.Result != nil {
			s.persistRecord(ctx, items[i], item.Result)
		}
	}
	return results
}

// Sweep deletes derived artifacts older than the retention window.
func (s *ImageService) Sweep() int {
	return s.sweeper.Sweep(s.cfg.RetentionMaxAge)
}

// ResponsiveURLs delegates to the publisher's pure URL synthesis.
func (s *ImageService) ResponsiveURLs(remoteID, originalURL string) model.ResponsiveURLSet {
	if s.pub == nil {
		return model.ResponsiveURLSet{Original: originalURL}
	}
	return s.pub.ResponsiveURLs(remoteID, originalURL)
}

func (s *ImageService) GetList(ctx context.Context, req *model.ListRequest) ([]model.DerivationRecord, error) {
	if s.repo == nil {
		return nil, nil
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 30
	}
	return s.repo.GetList(ctx, req)
}

// Delete removes a derivation record together with its local artifacts and
// remote asset. Local and remote removal are best-effort.
func (s *ImageService) Delete(ctx context.Context, id string) error {
	if s.repo == nil {
		return model.ErrRecordNotFound
	}

	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	for _, path := range []string{rec.MasterPath, rec.ThumbnailPath, rec.AltFormatPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			zlog.Logger.Warn().Err(err).Str("path", path).Msg("Failed to delete local artifact")
		}
	}

	if s.pub != nil && rec.RemoteID != "" {
		s.pub.Unpublish(ctx, rec.RemoteID)
	}
	return nil
}

// HealthCheck probes codec, directories and CDN. Any failed probe degrades
// the status; unhealthy means the check itself blew up.
func (s *ImageService) HealthCheck(ctx context.Context) (health model.HealthStatus) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Logger.Error().Interface("panic", r).Msg("Health check crashed")
			health = model.HealthStatus{Status: model.HealthUnhealthy}
		}
	}()

	health = model.HealthStatus{
		CodecAvailable:        probeCodec(),
		DirectoriesAccessible: s.probeDirs(),
		CDNReachable:          s.probeCDN(ctx),
	}

	if health.CodecAvailable && health.DirectoriesAccessible && health.CDNReachable {
		health.Status = model.HealthHealthy
	} else {
		health.Status = model.HealthDegraded
	}
	return health
}

func (s *ImageService) persistRecord(ctx context.Context, src model.SourceImage, res *model.DerivationResult) {
	if s.repo == nil {
		return
	}

	now := time.Now().UTC()
	rec := &model.DerivationRecord{
		UID:            uuid.New(),
		OriginalName:   src.OriginalFilename,
		SavingsPercent: res.Stats.SavingsPercent,
		CreatedAt:      &now,
	}

	for _, a := range res.Artifacts {
		switch a.Role {
		case model.RoleOptimized:
			rec.MasterPath = a.LocalPath
		case model.RoleThumbnail:
			rec.ThumbnailPath = a.LocalPath
		case model.RoleAltFormat:
			rec.AltFormatPath = a.LocalPath
		}
	}

	if out, ok := res.Published[model.RoleOptimized]; ok && out.Asset != nil {
		rec.RemoteID = out.Asset.RemoteID
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		// a lost record never fails the derivation: artifacts already exist
		zlog.Logger.Error().Err(err).Str("original", src.OriginalFilename).Msg("Failed to persist derivation record")
	}
}

func probeCodec() bool {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	var buf bytes.Buffer
	return imaging.Encode(&buf, img, imaging.JPEG) == nil
}

func (s *ImageService) probeDirs() bool {
	for _, dir := range s.cfg.ArtifactDirs() {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return false
		}
	}
	return true
}

// An unconfigured integration is not a failed probe: there is nothing to
// reach, and inactive mode is defined behavior.
func (s *ImageService) probeCDN(ctx context.Context) bool {
	if s.pub == nil || !s.pub.Active() {
		return true
	}
	return s.pub.Ping(ctx) == nil
}
