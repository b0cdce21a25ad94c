// Package publisher pushes derived artifacts to the CDN under deterministic
// naming and synthesizes responsive transformation URLs for published assets.
package publisher

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	_ "golang.org/x/image/webp"

	"github.com/imagemill/imagemill/internal/config"
	"github.com/imagemill/imagemill/internal/model"
)

// objectStore - the slice of the CDN client the publisher needs.
// *minio.Client satisfies it.
type objectStore interface {
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	BucketExists(ctx context.Context, bucketName string) (bool, error)
}

type CDNPublisher struct {
	cfg     config.CDN
	client  objectStore
	retries retry.Strategy
}

var defaultUploadRetry = retry.Strategy{
	Attempts: 3,
	Delay:    2 * time.Second,
	Backoff:  1.5,
}

// New connects to the CDN endpoint when credentials are configured. Without
// credentials the publisher stays permanently inactive: every call becomes a
// cheap no-op for the process lifetime.
func New(cfg config.CDN) (*CDNPublisher, error) {
	if !cfg.Active {
		return &CDNPublisher{cfg: cfg, retries: defaultUploadRetry}, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}

	if err := ensureBucket(context.Background(), client, cfg.Bucket); err != nil {
		return nil, err
	}

	return &CDNPublisher{cfg: cfg, client: client, retries: defaultUploadRetry}, nil
}

func (p *CDNPublisher) Active() bool {
	return p.cfg.Active && p.client != nil
}

// RemoteID builds the deterministic asset identifier for one role:
// role-grouped folders under the category, keyed by baseName so a
// re-publication of the same baseName overwrites the prior asset.
func (p *CDNPublisher) RemoteID(baseName string, role model.Role) string {
	return path.Join(p.cfg.Category, string(role), fmt.Sprintf("%s_%s", baseName, role))
}

// Publish uploads every artifact and never fails the caller: a role that
// cannot be uploaded gets an error outcome in its slot while the sibling
// roles proceed. An inactive integration yields an empty map.
func (p *CDNPublisher) Publish(ctx context.Context, artifacts []model.DerivedArtifact, baseName string) map[model.Role]model.PublishOutcome {
	out := make(map[model.Role]model.PublishOutcome, len(artifacts))
	if !p.Active() {
		return out
	}

	for _, a := range artifacts {
		asset, err := p.uploadOne(ctx, a, baseName)
		if err != nil {
			zlog.Logger.Error().Err(err).
				Str("role", string(a.Role)).
				Str("base", baseName).
				Msg("Failed to publish artifact to CDN")
			out[a.Role] = model.PublishOutcome{Err: fmt.Errorf("%w: role %s: %s", model.ErrPublish, a.Role, err)}
			continue
		}
		out[a.Role] = model.PublishOutcome{Asset: asset}
	}

	return out
}

func (p *CDNPublisher) uploadOne(ctx context.Context, a model.DerivedArtifact, baseName string) (*model.PublishedAsset, error) {
	remoteID := p.RemoteID(baseName, a.Role)

	stat, err := os.Stat(a.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("stat artifact: %w", err)
	}

	opts := minio.PutObjectOptions{
		ContentType: contentTypeFor(a.LocalPath),
	}
	if a.Role == model.RoleOptimized {
		// The CDN negotiates delivery quality/format on its own; the hint is
		// opaque to us and never re-implemented locally.
		opts.UserMetadata = map[string]string{"X-Transform-Hint": "q_auto,f_auto"}
	}

	err = retry.Do(func() error {
		_, putErr := p.client.FPutObject(ctx, p.cfg.Bucket, remoteID, a.LocalPath, opts)
		return putErr
	}, p.retries)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	w, h := imageDims(a.LocalPath)

	return &model.PublishedAsset{
		RemoteURL: p.URLFor(remoteID, ""),
		RemoteID:  remoteID,
		Format:    strings.TrimPrefix(strings.ToLower(path.Ext(a.LocalPath)), "."),
		Width:     w,
		Height:    h,
		ByteSize:  stat.Size(),
	}, nil
}

// URLFor is pure: no network call, just the CDN's on-the-fly transformation
// syntax. An empty transformation yields the untransformed asset URL.
func (p *CDNPublisher) URLFor(remoteID, transformation string) string {
	base := strings.TrimSuffix(p.baseURL(), "/")
	if transformation == "" {
		return base + "/" + remoteID
	}
	return base + "/" + transformation + "/" + remoteID
}

// ResponsiveURLs synthesizes one URL per configured ascending width. When
// the integration is inactive or no asset was ever published, the caller
// only gets the original location back.
func (p *CDNPublisher) ResponsiveURLs(remoteID, originalURL string) model.ResponsiveURLSet {
	if !p.Active() || remoteID == "" {
		return model.ResponsiveURLSet{Original: originalURL}
	}

	set := model.ResponsiveURLSet{
		Original:   originalURL,
		Responsive: make(map[int]string, len(p.cfg.ResponsiveWidths)),
	}
	for _, w := range p.cfg.ResponsiveWidths {
		set.Responsive[w] = p.URLFor(remoteID, fmt.Sprintf("tr:w-%d,q-auto,f-auto", w))
	}
	return set
}

// Unpublish is best-effort: false when the integration is inactive or the
// remote call fails, never a fatal error.
func (p *CDNPublisher) Unpublish(ctx context.Context, remoteID string) bool {
	if !p.Active() || remoteID == "" {
		return false
	}

	if err := p.client.RemoveObject(ctx, p.cfg.Bucket, remoteID, minio.RemoveObjectOptions{}); err != nil {
		zlog.Logger.Warn().Err(err).Str("remote_id", remoteID).Msg("Failed to unpublish asset")
		return false
	}
	return true
}

// Ping probes CDN reachability for health checks.
func (p *CDNPublisher) Ping(ctx context.Context) error {
	if !p.Active() {
		return model.ErrCDNInactive
	}
	if _, err := p.client.BucketExists(ctx, p.cfg.Bucket); err != nil {
		return err
	}
	return nil
}

func (p *CDNPublisher) baseURL() string {
	if p.cfg.BaseURL != "" {
		return p.cfg.BaseURL
	}
	return "http://" + p.cfg.Endpoint + "/" + p.cfg.Bucket
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}

func contentTypeFor(localPath string) string {
	if ct, ok := model.GetCType[strings.ToLower(path.Ext(localPath))]; ok {
		return ct
	}
	return "application/octet-stream"
}

func imageDims(localPath string) (int, int) {
	f, err := os.Open(localPath)
	if err != nil {
		return 0, 0
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
