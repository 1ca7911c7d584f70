package handler

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/krishkalaria12/snap-gallery/gallery"
	"github.com/krishkalaria12/snap-gallery/logger"
	"go.uber.org/zap"
)

const imageField = "image"

type Handler struct {
	gallery        *gallery.Service
	log            *zap.Logger
	maxUploadBytes int
}

func New(svc *gallery.Service, log *zap.Logger, maxUploadBytes int) *Handler {
	return &Handler{
		gallery:        svc,
		log:            logger.OrNop(log).With(logger.ComponentHTTP),
		maxUploadBytes: maxUploadBytes,
	}
}

func errorResponse(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"status":  "error",
		"message": message,
		"error":   message,
		"data":    data,
	})
}

func wantsJSON(c *fiber.Ctx) bool {
	return strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON)
}

// ListImages handles GET /.
func (h *Handler) ListImages(c *fiber.Ctx) error {
	images, err := h.gallery.List(c.UserContext())
	if err != nil {
		h.log.Error("list images", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to load images", nil)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"message": "Images loaded",
		"data":    images,
	})
}

// UploadPage handles GET /upload and describes the upload form.
func (h *Handler) UploadPage(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"message": "Upload an image",
		"data": fiber.Map{
			"action":    "/upload-image",
			"method":    fiber.MethodPost,
			"enctype":   fiber.MIMEMultipartForm,
			"field":     imageField,
			"max_bytes": h.maxUploadBytes,
		},
	})
}

// UploadImage handles POST /upload-image with a multipart "image" field.
func (h *Handler) UploadImage(c *fiber.Ctx) error {
	file, err := c.FormFile(imageField)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "No image part in the request", nil)
	}
	if file.Filename == "" {
		return errorResponse(c, fiber.StatusBadRequest, "No selected file", nil)
	}

	blobFile, err := file.Open()
	if err != nil {
		return errorResponse(c, fiber.StatusInternalServerError, "Error opening the file", nil)
	}
	defer blobFile.Close()

	data, err := io.ReadAll(blobFile)
	if err != nil {
		return errorResponse(c, fiber.StatusInternalServerError, "Error reading the file", nil)
	}

	res, err := h.gallery.Upload(c.UserContext(), gallery.UploadInput{
		Filename:    file.Filename,
		ContentType: file.Header.Get(fiber.HeaderContentType),
		Data:        data,
	})
	if err != nil {
		var upErr *gallery.UploadError
		switch {
		case errors.Is(err, gallery.ErrNoFile):
			return errorResponse(c, fiber.StatusBadRequest, "No selected file", nil)
		case errors.As(err, &upErr):
			// state after a failed write is unknown; tell the client what landed
			return errorResponse(c, fiber.StatusInternalServerError, "Error uploading the file", fiber.Map{
				"blob_name": upErr.BlobName,
				"stage":     upErr.Stage,
				"written":   upErr.Written,
			})
		default:
			h.log.Error("upload image", zap.Error(err))
			return errorResponse(c, fiber.StatusInternalServerError, "Error uploading the file", nil)
		}
	}

	if !wantsJSON(c) {
		return c.Redirect("/", fiber.StatusSeeOther)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":  "success",
		"message": "Successfully uploaded the file",
		"data": fiber.Map{
			"id":          res.ID,
			"blob_name":   res.BlobName,
			"title":       res.Metadata.Title,
			"description": res.Metadata.Description,
		},
	})
}

type deleteRequest struct {
	ImageID interface{} `json:"image_id"`
}

// imageID accepts the id as a JSON string or number.
func (r deleteRequest) imageID() string {
	switch v := r.ImageID.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// DeleteImage handles POST /delete-image with a JSON body {"image_id": ...}.
func (h *Handler) DeleteImage(c *fiber.Ctx) error {
	var req deleteRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", nil)
	}

	id := req.imageID()
	err := h.gallery.Delete(c.UserContext(), id)
	switch {
	case err == nil:
	case errors.Is(err, gallery.ErrMissingID):
		return errorResponse(c, fiber.StatusBadRequest, "Image ID is required", nil)
	case errors.Is(err, gallery.ErrNotFound):
		return errorResponse(c, fiber.StatusNotFound, "Image not found", nil)
	default:
		h.log.Error("delete image", zap.String("id", id), zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to delete image", nil)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"message": "Image deleted successfully",
		"data":    nil,
	})
}

// ServeImage handles GET /serve_image/:blob. Without filter parameters the
// stored bytes are passed through unchanged. The expires and sig parameters
// of a signed URL are checked before anything is read.
func (h *Handler) ServeImage(c *fiber.Ctx) error {
	if err := h.gallery.VerifyAccess(c.Params("blob"), c.Query("expires"), c.Query("sig")); err != nil {
		h.log.Debug("serve image rejected", zap.String("blob", c.Params("blob")), zap.Error(err))
		return errorResponse(c, fiber.StatusForbidden, "Invalid or expired image URL", nil)
	}

	obj, err := h.gallery.Open(c.UserContext(), c.Params("blob"))
	if err != nil {
		if errors.Is(err, gallery.ErrNotFound) {
			return errorResponse(c, fiber.StatusNotFound, "Image not found", nil)
		}
		h.log.Error("serve image", zap.String("blob", c.Params("blob")), zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to load image", nil)
	}

	filters, err := parseFilters(c.Queries())
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	if len(filters) == 0 {
		if obj.ContentType != "" {
			c.Set(fiber.HeaderContentType, obj.ContentType)
		}
		return c.Status(fiber.StatusOK).Send(obj.Data)
	}

	out, err := transformImage(obj.Data, filters)
	if err != nil {
		return errorResponse(c, fiber.StatusUnprocessableEntity, err.Error(), nil)
	}

	c.Set(fiber.HeaderContentType, "image/jpeg")
	return c.Status(fiber.StatusOK).Send(out)
}

func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
