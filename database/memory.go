package database

import (
	"context"
	"sort"
	"sync"

	"github.com/krishkalaria12/snap-gallery/models"
)

// MemoryImageStore is an ImageStore backed by a map, used when no
// DATABASE_URL is configured.
type MemoryImageStore struct {
	mu     sync.RWMutex
	nextID uint
	images map[uint]models.Image
}

func NewMemoryImageStore() *MemoryImageStore {
	return &MemoryImageStore{images: make(map[uint]models.Image)}
}

func (s *MemoryImageStore) Create(_ context.Context, img *models.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	img.ID = s.nextID
	s.images[img.ID] = *img
	return nil
}

func (s *MemoryImageStore) Get(_ context.Context, id string) (*models.Image, error) {
	n, err := parseID(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	img, ok := s.images[n]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &img, nil
}

func (s *MemoryImageStore) Query(_ context.Context, filter models.ImageFilter) ([]models.Image, error) {
	s.mu.RLock()
	out := make([]models.Image, 0, len(s.images))
	for _, img := range s.images {
		if filter.BlobName != "" && img.BlobName != filter.BlobName {
			continue
		}
		out = append(out, img)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadDate.Equal(out[j].UploadDate) {
			return out[i].UploadDate.After(out[j].UploadDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *MemoryImageStore) Delete(_ context.Context, id string) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.images[n]; !ok {
		return ErrRecordNotFound
	}
	delete(s.images, n)
	return nil
}

func (s *MemoryImageStore) SetBlobName(_ context.Context, id, blobName string) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	img, ok := s.images[n]
	if !ok {
		return ErrRecordNotFound
	}
	img.BlobName = blobName
	s.images[n] = img
	return nil
}
