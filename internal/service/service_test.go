package service

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/imagemill/imagemill/internal/config"
	"github.com/imagemill/imagemill/internal/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	root := t.TempDir()
	return &config.Config{
		OptimizedDir: filepath.Join(root, "optimized"),
		ThumbnailDir: filepath.Join(root, "thumbnails"),
		AltFormatDir: filepath.Join(root, "webp"),
		Profiles: config.EncodeProfiles{
			MaxWidth:     2000,
			MaxHeight:    2000,
			JPEGQuality:  80,
			WebPQuality:  75,
			ThumbWidth:   150,
			ThumbHeight:  150,
			ThumbQuality: 75,
		},
		BatchConcurrency: 2,
		RetentionMaxAge:  7 * 24 * time.Hour,
	}
}

func writeTestImage(t *testing.T, path string, w, h int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 60, B: 30, A: 255})
		}
	}
	require.NoError(t, imaging.Save(img, path))
}

// NEW - CREATES ARTIFACT DIRECTORIES
func TestNew_CreatesDirectories(t *testing.T) {
	cfg := testConfig(t)

	_, err := New(cfg, nil, nil)
	require.NoError(t, err)

	for _, d := range cfg.ArtifactDirs() {
		info, statErr := os.Stat(d)
		require.NoError(t, statErr)
		require.True(t, info.IsDir())
	}
}

// PROCESSIMAGE - SUCCESS, RECORD PERSISTED
func TestProcessImage_PersistsRecord(t *testing.T) {
	cfg := testConfig(t)
	src := filepath.Join(t.TempDir(), "upload.png")
	writeTestImage(t, src, 400, 300)

	var saved *model.DerivationRecord
	repo := &mockRepo{
		createFn: func(ctx context.Context, rec *model.DerivationRecord) error {
			saved = rec
			return nil
		},
	}

	svc, err := New(cfg, nil, repo)
	require.NoError(t, err)

	res, err := svc.ProcessImage(context.Background(), model.SourceImage{
		LocalPath:        src,
		OriginalFilename: "cat.png",
	})
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 3)

	require.NotNil(t, saved)
	require.Equal(t, "cat.png", saved.OriginalName)
	require.NotEmpty(t, saved.MasterPath)
	require.NotEmpty(t, saved.ThumbnailPath)
	require.NotEmpty(t, saved.AltFormatPath)
	require.Empty(t, saved.RemoteID)
	require.NotEmpty(t, saved.SavingsPercent)
	require.NotNil(t, saved.CreatedAt)
}

// PROCESSIMAGE - RECORD WRITE FAILURE DOES NOT FAIL DERIVATION
func TestProcessImage_RecordFailureIgnored(t *testing.T) {
	cfg := testConfig(t)
	src := filepath.Join(t.TempDir(), "upload.png")
	writeTestImage(t, src, 100, 100)

	repo := &mockRepo{
		createFn: func(ctx context.Context, rec *model.DerivationRecord) error {
			return errors.New("db down")
		},
	}

	svc, err := New(cfg, nil, repo)
	require.NoError(t, err)

	res, err := svc.ProcessImage(context.Background(), model.SourceImage{
		LocalPath:        src,
		OriginalFilename: "cat.png",
	})
	require.NoError(t, err)
	require.NotNil(t, res)
}

// PROCESSIMAGE - PIPELINE FAILURE SKIPS PERSISTENCE
func TestProcessImage_FailureNotPersisted(t *testing.T) {
	cfg := testConfig(t)

	created := false
	repo := &mockRepo{
		createFn: func(ctx context.Context, rec *model.DerivationRecord) error {
			created = true
			return nil
		},
	}

	svc, err := New(cfg, nil, repo)
	require.NoError(t, err)
	svc.pipe = &mockDeriver{
		deriveFn: func(ctx context.Context, src model.SourceImage) (*model.DerivationResult, error) {
			return nil, &model.ItemError{Step: model.StepMetadata, Err: model.ErrUnreadableImage}
		},
	}

	_, err = svc.ProcessImage(context.Background(), model.SourceImage{LocalPath: "nope.png"})
	require.ErrorIs(t, err, model.ErrUnreadableImage)
	require.False(t, created)
}

// PROCESSIMAGE - REMOTE ID TAKEN FROM OPTIMIZED OUTCOME
func TestProcessImage_RecordsRemoteID(t *testing.T) {
	cfg := testConfig(t)

	var saved *model.DerivationRecord
	repo := &mockRepo{
		createFn: func(ctx context.Context, rec *model.DerivationRecord) error {
			saved = rec
			return nil
		},
	}

	svc, err := New(cfg, nil, repo)
	require.NoError(t, err)
	svc.pipe = &mockDeriver{
		deriveFn: func(ctx context.Context, src model.SourceImage) (*model.DerivationResult, error) {
			return &model.DerivationResult{
				Published: map[model.Role]model.PublishOutcome{
					model.RoleOptimized: {Asset: &model.PublishedAsset{RemoteID: "images/optimized/cat_optimized"}},
				},
			}, nil
		},
	}

	_, err = svc.ProcessImage(context.Background(), model.SourceImage{OriginalFilename: "cat.png"})
	require.NoError(t, err)
	require.NotNil(t, saved)
	require.Equal(t, "images/optimized/cat_optimized", saved.RemoteID)
}

// PROCESSBATCH - ONLY SUCCESSFUL ITEMS PERSISTED
func TestProcessBatch_PersistsSuccessesOnly(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "good.png")
	writeTestImage(t, good, 50, 50)
	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("junk"), 0o644))

	var savedNames []string
	repo := &mockRepo{
		createFn: func(ctx context.Context, rec *model.DerivationRecord) error {
			savedNames = append(savedNames, rec.OriginalName)
			return nil
		},
	}

	svc, err := New(cfg, nil, repo)
	require.NoError(t, err)

	results := svc.ProcessBatch(context.Background(), []model.SourceImage{
		{LocalPath: bad, OriginalFilename: "bad.png"},
		{LocalPath: good, OriginalFilename: "good.png"},
	})

	require.Len(t, results, 2)
	require.NotNil(t, results[0].Err)
	require.Nil(t, results[1].Err)
	require.Equal(t, []string{"good.png"}, savedNames)
}

// GETLIST - PAGINATION DEFAULTS
func TestGetList_NormalizesPagination(t *testing.T) {
	cfg := testConfig(t)

	var got *model.ListRequest
	repo := &mockRepo{
		getListFn: func(ctx context.Context, req *model.ListRequest) ([]model.DerivationRecord, error) {
			got = req
			return nil, nil
		},
	}

	svc, err := New(cfg, nil, repo)
	require.NoError(t, err)

	_, err = svc.GetList(context.Background(), &model.ListRequest{Page: 0, Limit: 500})
	require.NoError(t, err)
	require.Equal(t, 1, got.Page)
	require.Equal(t, 30, got.Limit)
}

// DELETE - REMOVES RECORD, FILES AND REMOTE ASSET
func TestDelete_FullCleanup(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()

	master := filepath.Join(dir, "cat_optimized.png")
	thumb := filepath.Join(dir, "cat_thumbnail.png")
	require.NoError(t, os.WriteFile(master, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(thumb, []byte("x"), 0o644))

	rec := &model.DerivationRecord{
		MasterPath:    master,
		ThumbnailPath: thumb,
		RemoteID:      "images/optimized/cat_optimized",
	}

	deleted := false
	repo := &mockRepo{
		getFn: func(ctx context.Context, id string) (*model.DerivationRecord, error) {
			return rec, nil
		},
		deleteFn: func(ctx context.Context, id string) error {
			deleted = true
			return nil
		},
	}

	var unpublished string
	pub := &mockPublisher{
		active: true,
		unpublishFn: func(ctx context.Context, remoteID string) bool {
			unpublished = remoteID
			return true
		},
	}

	svc, err := New(cfg, pub, repo)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "some-id"))
	require.True(t, deleted)
	require.Equal(t, "images/optimized/cat_optimized", unpublished)

	_, err = os.Stat(master)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(thumb)
	require.True(t, os.IsNotExist(err))
}

// DELETE - MISSING RECORD PROPAGATES
func TestDelete_NotFound(t *testing.T) {
	cfg := testConfig(t)

	repo := &mockRepo{
		getFn: func(ctx context.Context, id string) (*model.DerivationRecord, error) {
			return nil, model.ErrRecordNotFound
		},
	}

	svc, err := New(cfg, nil, repo)
	require.NoError(t, err)

	err = svc.Delete(context.Background(), "missing")
	require.ErrorIs(t, err, model.ErrRecordNotFound)
}

// SWEEP - DELEGATES WITH RETENTION WINDOW
func TestSweep_RemovesExpired(t *testing.T) {
	cfg := testConfig(t)
	cfg.RetentionMaxAge = time.Hour

	svc, err := New(cfg, nil, nil)
	require.NoError(t, err)

	old := filepath.Join(cfg.OptimizedDir, "old.png")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	stale := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, stale, stale))

	fresh := filepath.Join(cfg.ThumbnailDir, "fresh.png")
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))

	require.Equal(t, 1, svc.Sweep())
	_, err = os.Stat(fresh)
	require.NoError(t, err)
}

// HEALTH - ALL PROBES PASS
func TestHealthCheck_Healthy(t *testing.T) {
	cfg := testConfig(t)

	svc, err := New(cfg, &mockPublisher{active: false}, nil)
	require.NoError(t, err)

	h := svc.HealthCheck(context.Background())
	require.Equal(t, model.HealthHealthy, h.Status)
	require.True(t, h.CodecAvailable)
	require.True(t, h.DirectoriesAccessible)
	require.True(t, h.CDNReachable)
}

// HEALTH - MISSING DIRECTORY DEGRADES
func TestHealthCheck_MissingDirDegrades(t *testing.T) {
	cfg := testConfig(t)

	svc, err := New(cfg, nil, nil)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(cfg.AltFormatDir))

	h := svc.HealthCheck(context.Background())
	require.Equal(t, model.HealthDegraded, h.Status)
	require.False(t, h.DirectoriesAccessible)
	require.True(t, h.CodecAvailable)
}

// HEALTH - UNREACHABLE CDN DEGRADES
func TestHealthCheck_CDNDownDegrades(t *testing.T) {
	cfg := testConfig(t)

	pub := &mockPublisher{
		active: true,
		pingFn: func(ctx context.Context) error { return errors.New("connection refused") },
	}

	svc, err := New(cfg, pub, nil)
	require.NoError(t, err)

	h := svc.HealthCheck(context.Background())
	require.Equal(t, model.HealthDegraded, h.Status)
	require.False(t, h.CDNReachable)
}

// HEALTH - PANICKING PROBE REPORTS UNHEALTHY
func TestHealthCheck_PanicUnhealthy(t *testing.T) {
	cfg := testConfig(t)

	pub := &mockPublisher{
		active: true,
		pingFn: func(ctx context.Context) error { panic("probe crashed") },
	}

	svc, err := New(cfg, pub, nil)
	require.NoError(t, err)

	h := svc.HealthCheck(context.Background())
	require.Equal(t, model.HealthUnhealthy, h.Status)
}

// RESPONSIVE URLS - NIL PUBLISHER FALLS BACK TO ORIGINAL
func TestResponsiveURLs_NilPublisher(t *testing.T) {
	cfg := testConfig(t)

	svc, err := New(cfg, nil, nil)
	require.NoError(t, err)

	set := svc.ResponsiveURLs("images/optimized/cat", "http://x/cat.png")
	require.Equal(t, "http://x/cat.png", set.Original)
	require.Empty(t, set.Responsive)
}
