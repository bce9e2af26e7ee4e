// Package previews stores the PNG thumbnails the editor sends with each
// project save.
package previews

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aurorasketchpad/aurora/internal/common"
	"github.com/aurorasketchpad/aurora/internal/logging"
	"github.com/aurorasketchpad/aurora/internal/server/config"
)

// Storage names accepted by New.
const (
	StorageInline = "inline"
	StorageS3     = "s3"
)

const (
	pngDataURLPrefix = "data:image/png;base64,"
	maxPreviewBytes  = 5 << 20
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Store matches services.PreviewStore.
type Store interface {
	Save(ctx context.Context, userID int64, preview string) (string, error)
	URL(ctx context.Context, ref string) (string, error)
	Delete(ctx context.Context, ref string) error
}

// New returns the Store selected by cfg.Storage.
func New(ctx context.Context, cfg config.PreviewConfig, logger logging.Logger) (Store, error) {
	switch cfg.Storage {
	case "", StorageInline:
		return InlineStore{}, nil
	case StorageS3:
		return NewS3Store(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown preview storage %q", cfg.Storage)
	}
}

// decodePNGDataURL returns the image bytes of a base64 PNG data URL.
func decodePNGDataURL(preview string) ([]byte, error) {
	if !strings.HasPrefix(preview, pngDataURLPrefix) {
		return nil, fmt.Errorf("%w: preview must be a PNG data URL", common.ErrValidation)
	}
	encoded := preview[len(pngDataURLPrefix):]
	if base64.StdEncoding.DecodedLen(len(encoded)) > maxPreviewBytes {
		return nil, fmt.Errorf("%w: preview is too large", common.ErrValidation)
	}

	img, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: preview is not valid base64", common.ErrValidation)
	}
	if !bytes.HasPrefix(img, pngMagic) {
		return nil, fmt.Errorf("%w: preview is not a PNG image", common.ErrValidation)
	}
	return img, nil
}
