package models

import (
	"strconv"
	"time"

	"gorm.io/gorm"
)

const (
	FallbackTitle       = "Untitled Image"
	FallbackDescription = "No description available"
)

// Image is one uploaded photo. Title and Description are a cached copy of
// the sidecar object written next to the blob.
type Image struct {
	gorm.Model
	BlobName    string    `json:"blob_name" gorm:"index"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	UploadDate  time.Time `json:"upload_date" gorm:"not null;index"`

	// ImageLink is the full object URL stored by versions that predate BlobName.
	ImageLink string `json:"image_link,omitempty"`
}

// RecordID returns the identifier handed out to API clients.
func (i Image) RecordID() string {
	return strconv.FormatUint(uint64(i.ID), 10)
}

// ImageMetadata is the caption pair and the JSON body of the sidecar object.
type ImageMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// FallbackMetadata is used whenever no caption could be produced.
func FallbackMetadata() ImageMetadata {
	return ImageMetadata{Title: FallbackTitle, Description: FallbackDescription}
}

type ImageFilter struct {
	BlobName string
}

// DisplayImage is a gallery entry ready to render.
type DisplayImage struct {
	ID          string    `json:"id"`
	BlobName    string    `json:"blob_name"`
	SignedURL   string    `json:"signed_url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	UploadDate  time.Time `json:"upload_date"`
}
