package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("http://localhost:3000", nil)

	data := []byte{0xff, 0xd8, 0xff}
	require.NoError(t, s.Put(ctx, "a.jpg", data, "image/jpeg"))

	// caller mutations must not leak into the store
	data[0] = 0x00

	obj, err := s.Get(ctx, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, obj.Data)
	assert.Equal(t, "image/jpeg", obj.ContentType)

	require.NoError(t, s.Put(ctx, "a.jpg", []byte("new"), "text/plain"))
	obj, err = s.Get(ctx, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "new", string(obj.Data))
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStoreMissing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("", nil)

	_, err := s.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrObjectNotExist)

	ok, err := s.Exists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("", nil)
	require.NoError(t, s.Put(ctx, "k", []byte("v"), "text/plain"))

	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"))

	ok, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreSignedURL(t *testing.T) {
	s := NewMemoryStore("http://localhost:3000", []byte("secret"))
	s.now = func() time.Time { return time.Unix(1_000, 0) }

	u, err := s.SignedURL(context.Background(), "abc_cat.jpg", time.Hour)
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("abc_cat.jpg|4600"))
	want := "http://localhost:3000/serve_image/abc_cat.jpg?expires=4600&sig=" + hex.EncodeToString(mac.Sum(nil))
	assert.Equal(t, want, u)
	assert.Equal(t, "abc_cat.jpg", s.BlobNameFromURL(u))
}

func TestMemoryStoreVerifySignedURL(t *testing.T) {
	s := NewMemoryStore("http://localhost:3000", []byte("secret"))
	s.now = func() time.Time { return time.Unix(1_000, 0) }

	u, err := s.SignedURL(context.Background(), "abc_cat.jpg", time.Hour)
	require.NoError(t, err)
	parsed, err := url.Parse(u)
	require.NoError(t, err)
	expires, sig := parsed.Query().Get("expires"), parsed.Query().Get("sig")

	assert.NoError(t, s.VerifySignedURL("abc_cat.jpg", expires, sig))

	cases := []struct {
		name, key, expires, sig string
		want                    error
	}{
		{"missing sig", "abc_cat.jpg", expires, "", ErrSignatureInvalid},
		{"not hex", "abc_cat.jpg", expires, "zz", ErrSignatureInvalid},
		{"tampered sig", "abc_cat.jpg", expires, strings.Repeat("0", len(sig)), ErrSignatureInvalid},
		{"other key", "abc_dog.jpg", expires, sig, ErrSignatureInvalid},
		{"extended expiry", "abc_cat.jpg", "99999", sig, ErrSignatureInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, s.VerifySignedURL(tc.key, tc.expires, tc.sig), tc.want)
		})
	}

	s.now = func() time.Time { return time.Unix(4_600, 0) }
	assert.ErrorIs(t, s.VerifySignedURL("abc_cat.jpg", expires, sig), ErrURLExpired)
}

func TestMemoryStoreRandomSecret(t *testing.T) {
	a := NewMemoryStore("", nil)
	b := NewMemoryStore("", nil)
	a.now = func() time.Time { return time.Unix(1_000, 0) }
	b.now = a.now

	ua, err := a.SignedURL(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	ub, err := b.SignedURL(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, ua, ub)
}

func TestBlobNameFromURL(t *testing.T) {
	cases := []struct {
		link, bucket, prefix, want string
	}{
		{"https://storage.googleapis.com/chefbuckets/abc_cat.jpg", "chefbuckets", "", "abc_cat.jpg"},
		{"https://storage.googleapis.com/chefbuckets/images/abc_cat.jpg", "chefbuckets", "images/", "abc_cat.jpg"},
		{"https://storage.googleapis.com/other/abc_cat.jpg", "chefbuckets", "", ""},
		{"https://storage.googleapis.com/chefbuckets/", "chefbuckets", "", ""},
		{"https://storage.googleapis.com/chefbuckets/a/b.jpg", "chefbuckets", "", ""},
		{"::not a url", "chefbuckets", "", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, blobNameFromURL(tc.link, tc.bucket, tc.prefix), tc.link)
	}
}

func TestNormalizePrefix(t *testing.T) {
	assert.Equal(t, "", normalizePrefix(""))
	assert.Equal(t, "", normalizePrefix("/"))
	assert.Equal(t, "images/", normalizePrefix("images"))
	assert.Equal(t, "images/", normalizePrefix("/images/"))
}
