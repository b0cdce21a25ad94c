// Package encoder produces the derived variants of a source image: the
// optimized master, the thumbnail and the WebP alt-format re-encode.
package encoder

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/imagemill/imagemill/internal/config"
	"github.com/imagemill/imagemill/internal/model"
)

type Encoder struct {
	profiles config.EncodeProfiles
}

func New(profiles config.EncodeProfiles) *Encoder {
	return &Encoder{profiles: profiles}
}

// EncodeMaster writes the optimized master for srcPath to dstPath.
// Orientation correction is applied first, then the image is fitted inside
// the configured bounding box without enlargement, then encoded with the
// parameters matching the target extension. An extension the codec does not
// recognize passes the source bytes through untouched.
func (e *Encoder) EncodeMaster(srcPath, dstPath string) (*model.EncodeStats, error) {
	srcStat, err := os.Stat(srcPath)
	if err != nil {
		return nil, fmt.Errorf("%w: stat source: %s", model.ErrEncode, err)
	}

	if _, err := imaging.FormatFromExtension(strings.TrimPrefix(filepath.Ext(dstPath), ".")); err != nil {
		if !isWebP(dstPath) {
			return e.passThrough(srcPath, dstPath, srcStat.Size())
		}
	}

	img, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: open source: %s", model.ErrEncode, err)
	}

	b := img.Bounds()
	if b.Dx() > e.profiles.MaxWidth || b.Dy() > e.profiles.MaxHeight {
		// Fit preserves aspect ratio and never upscales
		img = imaging.Fit(img, e.profiles.MaxWidth, e.profiles.MaxHeight, imaging.Lanczos)
	}

	if err := e.saveByExtension(img, dstPath); err != nil {
		return nil, err
	}

	dstStat, err := os.Stat(dstPath)
	if err != nil {
		return nil, fmt.Errorf("%w: stat output: %s", model.ErrEncode, err)
	}

	return &model.EncodeStats{
		OriginalByteSize: srcStat.Size(),
		OutputByteSize:   dstStat.Size(),
		SavingsPercent:   model.SavingsPercent(srcStat.Size(), dstStat.Size()),
	}, nil
}

// EncodeThumbnail crops the optimized master to exactly the configured box
// (cover semantics, may enlarge) and always re-encodes as JPEG at the
// thumbnail quality, whatever the master's own format is.
func (e *Encoder) EncodeThumbnail(masterPath, dstPath string) error {
	img, err := imaging.Open(masterPath)
	if err != nil {
		return fmt.Errorf("%w: open master: %s", model.ErrEncode, err)
	}

	thumb := imaging.Thumbnail(img, e.profiles.ThumbWidth, e.profiles.ThumbHeight, imaging.Lanczos)

	f, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("%w: create thumbnail: %s", model.ErrEncode, err)
	}
	defer closeFileFlow(f)

	if err := imaging.Encode(f, thumb, imaging.JPEG, imaging.JPEGQuality(e.profiles.ThumbQuality)); err != nil {
		return fmt.Errorf("%w: encode thumbnail: %s", model.ErrEncode, err)
	}
	return nil
}

// EncodeAltFormat re-encodes the optimized master (not the raw source) into
// WebP, so the variant can never exceed the master's dimensions.
func (e *Encoder) EncodeAltFormat(masterPath, dstPath string) error {
	img, err := imaging.Open(masterPath)
	if err != nil {
		return fmt.Errorf("%w: open master: %s", model.ErrEncode, err)
	}

	f, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("%w: create webp: %s", model.ErrEncode, err)
	}
	defer closeFileFlow(f)

	opts := &webp.Options{Lossless: false, Quality: float32(e.profiles.WebPQuality)}
	if err := webp.Encode(f, img, opts); err != nil {
		return fmt.Errorf("%w: encode webp: %s", model.ErrEncode, err)
	}
	return nil
}

func (e *Encoder) saveByExtension(img image.Image, dstPath string) error {
	switch strings.ToLower(filepath.Ext(dstPath)) {
	case ".jpg", ".jpeg":
		if err := imaging.Save(img, dstPath, imaging.JPEGQuality(e.profiles.JPEGQuality)); err != nil {
			return fmt.Errorf("%w: save jpeg: %s", model.ErrEncode, err)
		}
	case ".webp":
		f, err := os.Create(dstPath)
		if err != nil {
			return fmt.Errorf("%w: create webp: %s", model.ErrEncode, err)
		}
		defer closeFileFlow(f)
		opts := &webp.Options{Lossless: false, Quality: float32(e.profiles.WebPQuality)}
		if err := webp.Encode(f, img, opts); err != nil {
			return fmt.Errorf("%w: encode webp: %s", model.ErrEncode, err)
		}
	default:
		// PNG stays lossless, GIF/TIFF/BMP use the codec defaults
		if err := imaging.Save(img, dstPath); err != nil {
			return fmt.Errorf("%w: save: %s", model.ErrEncode, err)
		}
	}
	return nil
}

func isWebP(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".webp")
}

// passThrough copies the source bytes verbatim for target formats with no
// encode profile.
func (e *Encoder) passThrough(srcPath, dstPath string, srcSize int64) (*model.EncodeStats, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open source: %s", model.ErrEncode, err)
	}
	defer closeFileFlow(src)

	dst, err := os.Create(dstPath)
	if err != nil {
		return nil, fmt.Errorf("%w: create output: %s", model.ErrEncode, err)
	}
	defer closeFileFlow(dst)

	if _, err := io.Copy(dst, src); err != nil {
		return nil, fmt.Errorf("%w: copy source: %s", model.ErrEncode, err)
	}

	return &model.EncodeStats{
		OriginalByteSize: srcSize,
		OutputByteSize:   srcSize,
		SavingsPercent:   model.SavingsPercent(srcSize, srcSize),
	}, nil
}

func closeFileFlow(f *os.File) {
	if f == nil {
		return
	}
	_ = f.Close()
}
