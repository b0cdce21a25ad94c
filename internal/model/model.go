// Package model provides data-structs for internal app-usage
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role marks which derivative an artifact is.
type Role string

const (
	RoleOptimized Role = "optimized"
	RoleThumbnail Role = "thumbnail"
	RoleAltFormat Role = "webp"
)

var RolesMap = map[Role]bool{
	RoleOptimized: true,
	RoleThumbnail: true,
	RoleAltFormat: true,
}

// Pipeline step names, used in ItemError to tell where an item died.
const (
	StepMetadata  = "metadata"
	StepMaster    = "master"
	StepThumbnail = "thumbnail"
	StepAltFormat = "altformat"
	StepPublish   = "publish"
)

//---------------------

// SourceImage is a caller-owned input: a file on disk plus the name it was
// uploaded under. The pipeline never mutates the file.
type SourceImage struct {
	LocalPath        string `json:"local_path"`
	OriginalFilename string `json:"original_filename"`
}

// ImageMetadata - intrinsic properties of a source image, recomputed per input.
type ImageMetadata struct {
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Format       string `json:"format"`
	ByteSize     int64  `json:"byte_size"`
	ChannelCount int    `json:"channel_count"`
	DensityDPI   int    `json:"density_dpi"`
	HasAlpha     bool   `json:"has_alpha"`
	Orientation  int    `json:"orientation"`
}

// DerivedArtifact is one encoded output file on local disk.
type DerivedArtifact struct {
	LocalPath string `json:"local_path"`
	Role      Role   `json:"role"`
}

// PublishedAsset confirms that one artifact has a durable remote copy.
type PublishedAsset struct {
	RemoteURL string `json:"remote_url"`
	RemoteID  string `json:"remote_id"`
	Format    string `json:"format"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	ByteSize  int64  `json:"byte_size"`
}

// PublishOutcome is a per-role success-or-error slot: one failed upload
// must not hide the others.
type PublishOutcome struct {
	Asset *PublishedAsset `json:"asset,omitempty"`
	Err   error           `json:"-"`
}

// EncodeStats records the size effect of producing the optimized master.
type EncodeStats struct {
	OriginalByteSize int64  `json:"original_byte_size"`
	OutputByteSize   int64  `json:"output_byte_size"`
	SavingsPercent   string `json:"savings_percent"`
}

// SavingsPercent formats (orig-out)/orig as a percentage with one decimal.
func SavingsPercent(originalSize, outputSize int64) string {
	if originalSize <= 0 {
		return "0.0%"
	}
	saved := float64(originalSize-outputSize) / float64(originalSize) * 100
	return fmt.Sprintf("%.1f%%", saved)
}

// DerivationResult aggregates everything produced for one source image.
type DerivationResult struct {
	Metadata  *ImageMetadata          `json:"metadata"`
	Artifacts []DerivedArtifact       `json:"artifacts"`
	Published map[Role]PublishOutcome `json:"published,omitempty"`
	Stats     EncodeStats             `json:"optimization_stats"`
}

// ResponsiveURLSet - one URL per target width plus the untransformed original.
type ResponsiveURLSet struct {
	Original   string         `json:"original"`
	Responsive map[int]string `json:"responsive,omitempty"`
}

//-------------------

// ItemError carries the failed step and its cause for one batch slot.
type ItemError struct {
	Step string `json:"step"`
	Err  error  `json:"-"`
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// BatchItem holds exactly one of a result or an item error.
type BatchItem struct {
	Result *DerivationResult `json:"result,omitempty"`
	Err    *ItemError        `json:"error,omitempty"`
}

// BatchResult preserves submission order; len(BatchResult) == len(inputs).
type BatchResult []BatchItem

//-------------------

// DerivationRecord is the persisted summary row for one finished derivation.
type DerivationRecord struct {
	UID            uuid.UUID  `json:"uid"`
	OriginalName   string     `json:"original_name"`
	MasterPath     string     `json:"-"`
	ThumbnailPath  string     `json:"-"`
	AltFormatPath  string     `json:"-"`
	RemoteID       string     `json:"remote_id,omitempty"`
	SavingsPercent string     `json:"savings_percent"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
}

type ListRequest struct {
	Page  int
	Limit int
}

//-------------------

// HealthStatus - aggregate probe report for the facade.
type HealthStatus struct {
	Status                string `json:"status"`
	CodecAvailable        bool   `json:"codec_available"`
	DirectoriesAccessible bool   `json:"directories_accessible"`
	CDNReachable          bool   `json:"cdn_reachable"`
}

const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// ------------------

var (
	ErrUnreadableImage = errors.New("source image cannot be read or parsed")
	ErrEncode          = errors.New("codec failed to resize or re-encode image")
	ErrPublish         = errors.New("failed to upload artifact to CDN")
	ErrCleanup         = errors.New("failed to remove expired artifact")
	ErrRecordNotFound  = errors.New("derivation record doesn't exist")
	ErrCDNInactive     = errors.New("CDN integration is not configured")
)

//--------------------

const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
	GIF  = "image/gif"
	WebP = "image/webp"
)

var GetImageFileExt = map[string]string{
	JPEG: ".jpg",
	PNG:  ".png",
	GIF:  ".gif",
	WebP: ".webp",
}

var GetCType = map[string]string{
	".jpg":  JPEG,
	".jpeg": JPEG,
	".png":  PNG,
	".gif":  GIF,
	".webp": WebP,
}
