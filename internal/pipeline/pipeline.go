// Package pipeline orchestrates the per-image derivation sequence:
// metadata → optimized master → thumbnail → WebP variant → publication.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/imagemill/imagemill/internal/config"
	"github.com/imagemill/imagemill/internal/encoder"
	"github.com/imagemill/imagemill/internal/imagemeta"
	"github.com/imagemill/imagemill/internal/model"
)

// Publisher - contract for pushing artifacts to the CDN. Publish never
// returns an error: per-role failures live inside the outcome map.
type Publisher interface {
	Active() bool
	Publish(ctx context.Context, artifacts []model.DerivedArtifact, baseName string) map[model.Role]model.PublishOutcome
}

type Pipeline struct {
	cfg *config.Config
	enc *encoder.Encoder
	pub Publisher
}

func New(cfg *config.Config, enc *encoder.Encoder, pub Publisher) *Pipeline {
	return &Pipeline{cfg: cfg, enc: enc, pub: pub}
}

// Derive runs the whole sequence for one source image. Steps are strictly
// sequential: every later step consumes the optimized master. On failure the
// remaining steps are skipped and a step-named ItemError is returned;
// already-written outputs stay on disk for the retention sweep to collect.
func (p *Pipeline) Derive(ctx context.Context, src model.SourceImage) (*model.DerivationResult, error) {
	meta, err := imagemeta.Read(src.LocalPath)
	if err != nil {
		return nil, &model.ItemError{Step: model.StepMetadata, Err: err}
	}

	ext := filepath.Ext(src.OriginalFilename)
	if ext == "" {
		ext = filepath.Ext(src.LocalPath)
	}
	base := uniqueBase(src.OriginalFilename, ext)

	masterPath := filepath.Join(p.cfg.OptimizedDir, artifactName(base, model.RoleOptimized, ext))
	stats, err := p.enc.EncodeMaster(src.LocalPath, masterPath)
	if err != nil {
		return nil, &model.ItemError{Step: model.StepMaster, Err: err}
	}

	thumbPath := filepath.Join(p.cfg.ThumbnailDir, artifactName(base, model.RoleThumbnail, ext))
	if err := p.enc.EncodeThumbnail(masterPath, thumbPath); err != nil {
		return nil, &model.ItemError{Step: model.StepThumbnail, Err: err}
	}

	altPath := filepath.Join(p.cfg.AltFormatDir, artifactName(base, model.RoleAltFormat, ".webp"))
	if err := p.enc.EncodeAltFormat(masterPath, altPath); err != nil {
		return nil, &model.ItemError{Step: model.StepAltFormat, Err: err}
	}

	artifacts := []model.DerivedArtifact{
		{LocalPath: masterPath, Role: model.RoleOptimized},
		{LocalPath: thumbPath, Role: model.RoleThumbnail},
		{LocalPath: altPath, Role: model.RoleAltFormat},
	}

	// Absence of CDN configuration is not an error: local artifacts are
	// independently useful, the publication map just stays empty.
	published := map[model.Role]model.PublishOutcome{}
	if p.pub != nil && p.pub.Active() {
		published = p.pub.Publish(ctx, artifacts, base)
	}

	return &model.DerivationResult{
		Metadata:  meta,
		Artifacts: artifacts,
		Published: published,
		Stats:     *stats,
	}, nil
}

// uniqueBase combines the original base name, a timestamp and a short random
// token. Every artifact and remote id of one derivation shares it, and no
// two derivations can collide on it.
func uniqueBase(originalFilename, ext string) string {
	base := strings.TrimSuffix(filepath.Base(originalFilename), ext)
	if base == "" || base == "." {
		base = "image"
	}
	base = strings.ReplaceAll(base, " ", "_")

	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s", base, time.Now().UnixNano(), token)
}

func artifactName(base string, role model.Role, ext string) string {
	return fmt.Sprintf("%s_%s%s", base, role, ext)
}
