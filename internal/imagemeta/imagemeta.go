// Package imagemeta extracts intrinsic image properties without decoding
// pixel data.
package imagemeta

import (
	"fmt"
	"image"
	"image/color"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/imagemill/imagemill/internal/model"
)

// Sources without an explicit density are reported at the de-facto default.
const defaultDensityDPI = 72

// Read extracts metadata from the image at path. The source file is never
// mutated. A container the codec cannot parse yields ErrUnreadableImage.
func Read(path string) (*model.ImageMetadata, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %q: %s", model.ErrUnreadableImage, path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %s", model.ErrUnreadableImage, path, err)
	}
	defer closeFileFlow(f)

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %q: %s", model.ErrUnreadableImage, path, err)
	}

	channels, hasAlpha := channelInfo(cfg.ColorModel)

	return &model.ImageMetadata{
		Width:        cfg.Width,
		Height:       cfg.Height,
		Format:       format,
		ByteSize:     stat.Size(),
		ChannelCount: channels,
		DensityDPI:   defaultDensityDPI,
		HasAlpha:     hasAlpha,
		Orientation:  readOrientation(path),
	}, nil
}

// readOrientation returns the EXIF orientation tag, or 1 (upright) when the
// container carries no EXIF block. Absence is not an error.
func readOrientation(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 1
	}
	defer closeFileFlow(f)

	x, err := exif.Decode(f)
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return 1
	}
	return o
}

func channelInfo(m color.Model) (channels int, hasAlpha bool) {
	switch m {
	case color.RGBAModel, color.NRGBAModel, color.RGBA64Model, color.NRGBA64Model:
		return 4, true
	case color.YCbCrModel:
		return 3, false
	case color.GrayModel, color.Gray16Model:
		return 1, false
	case color.CMYKModel:
		return 4, false
	case color.AlphaModel, color.Alpha16Model:
		return 1, true
	}

	// GIF and indexed PNG decode to a palette model
	if p, ok := m.(color.Palette); ok {
		for _, c := range p {
			if _, _, _, a := c.RGBA(); a < 0xffff {
				return 4, true
			}
		}
		return 3, false
	}

	return 3, false
}

func closeFileFlow(f *os.File) {
	if f == nil {
		return
	}
	_ = f.Close()
}
