package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/krishkalaria12/snap-gallery/models"
	"github.com/krishkalaria12/snap-gallery/storage"
	"go.uber.org/zap"
)

// linkResolver is implemented by stores that can map a legacy object URL
// back to its key.
type linkResolver interface {
	BlobNameFromURL(link string) string
}

// resolveBlobName returns the record's blob name. Records written before
// BlobName existed only carry ImageLink; for those the name is derived from
// the link and "" means it could not be.
func (s *Service) resolveBlobName(img *models.Image) string {
	if img.BlobName != "" {
		return img.BlobName
	}
	if img.ImageLink == "" {
		return ""
	}
	if r, ok := s.store.(linkResolver); ok {
		return r.BlobNameFromURL(img.ImageLink)
	}
	return ""
}

// List returns every record that has a usable blob name, each with a fresh
// signed URL. When a sidecar object exists and parses, its title and
// description win over the values cached on the record.
func (s *Service) List(ctx context.Context) ([]models.DisplayImage, error) {
	records, err := s.images.Query(ctx, models.ImageFilter{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListFailed, err)
	}

	out := make([]models.DisplayImage, 0, len(records))
	for i := range records {
		img := &records[i]

		blobName := s.resolveBlobName(img)
		if blobName == "" {
			continue
		}
		if img.BlobName == "" {
			s.backfillBlobName(ctx, img, blobName)
		}

		signedURL, err := s.store.SignedURL(ctx, blobName, s.signedURLTTL)
		if err != nil {
			return nil, fmt.Errorf("%w: sign %s: %w", ErrListFailed, blobName, err)
		}

		display := models.DisplayImage{
			ID:          img.RecordID(),
			BlobName:    blobName,
			SignedURL:   signedURL,
			Title:       img.Title,
			Description: img.Description,
			UploadDate:  img.UploadDate,
		}
		if meta, ok := s.loadSidecar(ctx, blobName); ok {
			display.Title = meta.Title
			display.Description = meta.Description
		}
		if display.Title == "" && display.Description == "" {
			fallback := models.FallbackMetadata()
			display.Title, display.Description = fallback.Title, fallback.Description
		}

		out = append(out, display)
	}

	return out, nil
}

func (s *Service) backfillBlobName(ctx context.Context, img *models.Image, blobName string) {
	if err := s.images.SetBlobName(ctx, img.RecordID(), blobName); err != nil {
		s.log.Warn("backfill blob name failed", zap.String("id", img.RecordID()), zap.Error(err))
		return
	}
	s.log.Info("backfilled blob name from legacy link", zap.String("id", img.RecordID()), zap.String("blob", blobName))
}

// loadSidecar reads the JSON metadata object for blobName. Missing,
// unreadable or malformed sidecars all report false.
func (s *Service) loadSidecar(ctx context.Context, blobName string) (models.ImageMetadata, bool) {
	key := SidecarKey(blobName)

	obj, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrObjectNotExist) {
			s.log.Warn("read sidecar failed", zap.String("key", key), zap.Error(err))
		}
		return models.ImageMetadata{}, false
	}

	var raw struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
	}
	if err := json.Unmarshal(obj.Data, &raw); err != nil {
		s.log.Debug("ignoring malformed sidecar", zap.String("key", key), zap.Error(err))
		return models.ImageMetadata{}, false
	}

	meta := models.FallbackMetadata()
	if raw.Title != nil {
		meta.Title = *raw.Title
	}
	if raw.Description != nil {
		meta.Description = *raw.Description
	}
	return meta, true
}
