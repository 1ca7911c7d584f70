package database

import (
	"context"
	"errors"
	"strconv"

	"github.com/krishkalaria12/snap-gallery/models"
	"gorm.io/gorm"
)

var ErrRecordNotFound = errors.New("image record not found")

// ImageStore persists image records.
type ImageStore interface {
	// Create inserts img and fills in its ID.
	Create(ctx context.Context, img *models.Image) error
	// Get returns ErrRecordNotFound when id is unknown or malformed.
	Get(ctx context.Context, id string) (*models.Image, error)
	// Query returns matching records, newest upload first.
	Query(ctx context.Context, filter models.ImageFilter) ([]models.Image, error)
	Delete(ctx context.Context, id string) error
	SetBlobName(ctx context.Context, id, blobName string) error
}

func parseID(id string) (uint, error) {
	n, err := strconv.ParseUint(id, 10, 0)
	if err != nil || n == 0 {
		return 0, ErrRecordNotFound
	}
	return uint(n), nil
}

type GormImageStore struct {
	db *gorm.DB
}

func NewGormImageStore(db *gorm.DB) *GormImageStore {
	return &GormImageStore{db: db}
}

func (s *GormImageStore) Create(ctx context.Context, img *models.Image) error {
	return s.db.WithContext(ctx).Create(img).Error
}

func (s *GormImageStore) Get(ctx context.Context, id string) (*models.Image, error) {
	n, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var image models.Image
	if err := s.db.WithContext(ctx).First(&image, n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &image, nil
}

func (s *GormImageStore) Query(ctx context.Context, filter models.ImageFilter) ([]models.Image, error) {
	tx := s.db.WithContext(ctx).Order("upload_date desc").Order("id desc")
	if filter.BlobName != "" {
		tx = tx.Where("blob_name = ?", filter.BlobName)
	}

	var images []models.Image
	if err := tx.Find(&images).Error; err != nil {
		return nil, err
	}
	return images, nil
}

func (s *GormImageStore) Delete(ctx context.Context, id string) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Delete(&models.Image{}, n)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *GormImageStore) SetBlobName(ctx context.Context, id, blobName string) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Model(&models.Image{}).Where("id = ?", n).Update("blob_name", blobName)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
