package caption

import (
	"strings"

	"github.com/krishkalaria12/snap-gallery/models"
)

const (
	titleMarker       = "Title:"
	descriptionMarker = "Description:"
)

// ParseCaption extracts the title and description from a model answer of
// the form "Title: <t> Description: <d>". Both markers must be present.
//
// The title runs from the first "Title:" to the next "Description:" after
// it. The description runs from the first "Description:" to the following
// "Description:" or the end of the text.
func ParseCaption(text string) (models.ImageMetadata, bool) {
	ti := strings.Index(text, titleMarker)
	di := strings.Index(text, descriptionMarker)
	if ti < 0 || di < 0 {
		return models.ImageMetadata{}, false
	}

	title, _, _ := strings.Cut(text[ti+len(titleMarker):], descriptionMarker)
	description, _, _ := strings.Cut(text[di+len(descriptionMarker):], descriptionMarker)

	return models.ImageMetadata{
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
	}, true
}
