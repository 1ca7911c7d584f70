package gallery

import (
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

const SidecarExt = ".json"

// NewBlobName returns a storage key of the form "<uuid>_<sanitized filename>".
func NewBlobName(filename string) string {
	id := uuid.NewString()
	if clean := SanitizeFilename(filename); clean != "" {
		return id + "_" + clean
	}
	return id
}

// SanitizeFilename reduces filename to a flat ASCII name made of letters,
// digits, '.', '_' and '-'. Path separators and whitespace become '_'.
// The result may be empty.
func SanitizeFilename(filename string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(filename) {
		switch {
		case r == '/' || r == '\\' || unicode.IsSpace(r):
			b.WriteByte(' ')
		case r > unicode.MaxASCII:
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}

	name := strings.Join(strings.Fields(b.String()), "_")
	return strings.Trim(name, "._")
}

// SidecarKey returns the key of the JSON metadata object belonging to
// blobName: the blob's extension is replaced by SidecarExt. A blob that
// already ends in SidecarExt gets the extension appended instead.
func SidecarKey(blobName string) string {
	ext := path.Ext(blobName)
	if strings.EqualFold(ext, SidecarExt) {
		return blobName + SidecarExt
	}
	return strings.TrimSuffix(blobName, ext) + SidecarExt
}
