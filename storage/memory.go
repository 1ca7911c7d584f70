package storage

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// ServePath is the route that serves objects of the in-memory store.
const ServePath = "serve_image"

var (
	ErrSignatureInvalid = errors.New("invalid URL signature")
	ErrURLExpired       = errors.New("signed URL expired")
)

// URLVerifier is implemented by stores whose signed URLs are served by this
// service itself and therefore have to be checked on every request.
type URLVerifier interface {
	VerifySignedURL(key, expires, sig string) error
}

// MemoryStore keeps objects in process memory. Signed URLs point back at the
// service's own ServePath route and carry an HMAC-SHA256 of key and expiry.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
	baseURL string
	secret  []byte
	now     func() time.Time
}

// NewMemoryStore returns an empty store. An empty secret is replaced by a
// random one, so URLs only stay valid for the lifetime of the process.
func NewMemoryStore(baseURL string, secret []byte) *MemoryStore {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			panic(fmt.Sprintf("storage: read random signing secret: %v", err))
		}
	}
	return &MemoryStore{
		objects: make(map[string]Object),
		baseURL: baseURL,
		secret:  append([]byte(nil), secret...),
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = Object{Key: key, ContentType: contentType, Data: buf}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, ErrObjectNotExist
	}
	obj.Data = append([]byte(nil), obj.Data...)
	return &obj, nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	expires := strconv.FormatInt(s.now().Add(ttl).Unix(), 10)
	return fmt.Sprintf("%s/%s/%s?expires=%s&sig=%s",
		s.baseURL, ServePath, url.PathEscape(key), expires, s.sign(key, expires)), nil
}

// VerifySignedURL checks the expires and sig query values of a URL produced
// by SignedURL for key.
func (s *MemoryStore) VerifySignedURL(key, expires, sig string) error {
	want, err := hex.DecodeString(sig)
	if err != nil || sig == "" {
		return ErrSignatureInvalid
	}
	got, _ := hex.DecodeString(s.sign(key, expires))
	if !hmac.Equal(got, want) {
		return ErrSignatureInvalid
	}

	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrSignatureInvalid
	}
	if !s.now().Before(time.Unix(exp, 0)) {
		return ErrURLExpired
	}
	return nil
}

func (s *MemoryStore) sign(key, expires string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(key + "|" + expires))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *MemoryStore) BlobNameFromURL(link string) string {
	return blobNameFromURL(link, ServePath, "")
}

// Len reports the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
