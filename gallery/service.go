// Package gallery implements the upload, delete and listing pipeline on top
// of an object store, a record store and a captioning model.
package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/krishkalaria12/snap-gallery/caption"
	"github.com/krishkalaria12/snap-gallery/database"
	"github.com/krishkalaria12/snap-gallery/logger"
	"github.com/krishkalaria12/snap-gallery/metrics"
	"github.com/krishkalaria12/snap-gallery/models"
	"github.com/krishkalaria12/snap-gallery/storage"
	"go.uber.org/zap"
)

const DefaultSignedURLTTL = 3600 * time.Second

type Options struct {
	SignedURLTTL time.Duration
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
}

type Service struct {
	store     storage.Store
	images    database.ImageStore
	captioner caption.Describer

	signedURLTTL time.Duration
	log          *zap.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewService(store storage.Store, images database.ImageStore, captioner caption.Describer, opts Options) *Service {
	if opts.SignedURLTTL <= 0 {
		opts.SignedURLTTL = DefaultSignedURLTTL
	}
	if captioner == nil {
		captioner = caption.Nop{}
	}

	return &Service{
		store:        store,
		images:       images,
		captioner:    captioner,
		signedURLTTL: opts.SignedURLTTL,
		log:          logger.OrNop(opts.Logger).With(logger.ComponentGallery),
		metrics:      opts.Metrics,
		now:          time.Now,
	}
}

type UploadInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

type UploadResult struct {
	ID       string
	BlobName string
	Metadata models.ImageMetadata
}

// detectContentType keeps a declared type unless it is missing or generic.
func detectContentType(declared string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return mimetype.Detect(data).String()
}

// Upload stores the image, its JSON sidecar and a record, in that order.
// The writes are not transactional. On failure the returned *UploadError
// lists the writes that already happened; nothing is rolled back.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if in.Filename == "" || len(in.Data) == 0 {
		s.metrics.Upload("rejected")
		return nil, ErrNoFile
	}

	blobName := NewBlobName(in.Filename)
	contentType := detectContentType(in.ContentType, in.Data)
	log := s.log.With(zap.String("blob", blobName))

	meta := s.captioner.Describe(ctx, in.Data, contentType)

	fail := func(stage Stage, written []Stage, err error) (*UploadResult, error) {
		s.metrics.Upload("failed")
		log.Error("upload failed", zap.String("stage", string(stage)), zap.Any("written", written), zap.Error(err))
		return nil, &UploadError{BlobName: blobName, Stage: stage, Written: written, Err: err}
	}

	start := time.Now()
	if err := s.store.Put(ctx, blobName, in.Data, contentType); err != nil {
		return fail(StageImage, nil, err)
	}
	s.metrics.ObserveStage("image_put", start)

	sidecar, err := json.Marshal(meta)
	if err != nil {
		return fail(StageSidecar, []Stage{StageImage}, err)
	}
	start = time.Now()
	if err := s.store.Put(ctx, SidecarKey(blobName), sidecar, "application/json"); err != nil {
		return fail(StageSidecar, []Stage{StageImage}, err)
	}
	s.metrics.ObserveStage("sidecar_put", start)

	record := &models.Image{
		BlobName:    blobName,
		Title:       meta.Title,
		Description: meta.Description,
		UploadDate:  s.now(),
	}
	start = time.Now()
	if err := s.images.Create(ctx, record); err != nil {
		return fail(StageRecord, []Stage{StageImage, StageSidecar}, err)
	}
	s.metrics.ObserveStage("record_create", start)

	s.metrics.Upload("ok")
	log.Info("image uploaded", zap.String("id", record.RecordID()), zap.String("title", meta.Title))

	return &UploadResult{ID: record.RecordID(), BlobName: blobName, Metadata: meta}, nil
}

// Delete removes the image object, its sidecar and the record. Objects go
// first; if one of them cannot be removed the record is kept so the blob
// stays reachable.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		s.metrics.Delete("rejected")
		return ErrMissingID
	}

	img, err := s.images.Get(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			s.metrics.Delete("not_found")
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		s.metrics.Delete("failed")
		return &DeleteError{ID: id, Err: err}
	}

	if blobName := s.resolveBlobName(img); blobName != "" {
		for _, key := range []string{blobName, SidecarKey(blobName)} {
			if err := s.deleteObject(ctx, key); err != nil {
				s.metrics.Delete("failed")
				s.log.Error("delete object failed", zap.String("id", id), zap.String("key", key), zap.Error(err))
				return &DeleteError{ID: id, Key: key, Err: err}
			}
		}
	}

	if err := s.images.Delete(ctx, id); err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			s.metrics.Delete("not_found")
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		s.metrics.Delete("failed")
		return &DeleteError{ID: id, Err: err}
	}

	s.metrics.Delete("ok")
	s.log.Info("image deleted", zap.String("id", id))
	return nil
}

func (s *Service) deleteObject(ctx context.Context, key string) error {
	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	return s.store.Delete(ctx, key)
}

// VerifyAccess checks the expires and sig values of a serve request when the
// object store hands out URLs that point back at this service. Stores that
// sign their own URLs (GCS, MinIO) are not checked here.
func (s *Service) VerifyAccess(blobName, expires, sig string) error {
	v, ok := s.store.(storage.URLVerifier)
	if !ok {
		return nil
	}
	if err := v.VerifySignedURL(blobName, expires, sig); err != nil {
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	}
	return nil
}

// Open returns the stored image for blobName. Only blobs referenced by a
// record are served.
func (s *Service) Open(ctx context.Context, blobName string) (*storage.Object, error) {
	if blobName == "" {
		return nil, ErrNotFound
	}

	records, err := s.images.Query(ctx, models.ImageFilter{BlobName: blobName})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, blobName)
	}

	obj, err := s.store.Get(ctx, blobName)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, blobName)
	}
	return obj, err
}
