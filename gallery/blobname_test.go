package gallery

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBlobNameUnique(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		name := NewBlobName("x.jpg")
		_, dup := seen[name]
		require.False(t, dup, "duplicate blob name %s", name)
		seen[name] = struct{}{}
	}
}

func TestNewBlobNameShape(t *testing.T) {
	name := NewBlobName("../../etc/My Holiday.JPG")
	id, rest, ok := strings.Cut(name, "_")
	require.True(t, ok)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, "etc_My_Holiday.JPG", rest)

	bare := NewBlobName("///")
	_, err = uuid.Parse(bare)
	assert.NoError(t, err, "nothing survives sanitizing, key is the uuid alone")
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"cat.jpg":                 "cat.jpg",
		"my cat.jpg":              "my_cat.jpg",
		"../../etc/passwd":        "etc_passwd",
		`C:\Users\me\photo.png`:   "C_Users_me_photo.png",
		"café au lait.jpeg":       "cafe_au_lait.jpeg",
		"résumé<script>.png":      "resumescript.png",
		".hidden":                 "hidden",
		"  spaced   out  .gif ":   "spaced_out_.gif",
		"日本.jpg":                  "jpg",
		"":                        "",
		"__init__.py":             "init__.py",
		"a\tb\nc.webp":            "a_b_c.webp",
		"weird;name|with:chars.j": "weirdnamewithchars.j",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}
}

func TestSidecarKey(t *testing.T) {
	assert.Equal(t, "abc_cat.json", SidecarKey("abc_cat.jpg"))
	assert.Equal(t, "abc_cat.tar.json", SidecarKey("abc_cat.tar.gz"))
	assert.Equal(t, "abc_cat.json", SidecarKey("abc_cat"))
	assert.Equal(t, "abc_meta.json.json", SidecarKey("abc_meta.json"))
	assert.Equal(t, "abc_meta.JSON.json", SidecarKey("abc_meta.JSON"))
}
