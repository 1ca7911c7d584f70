package handler

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strconv"
	"strings"

	"github.com/disintegration/gift"
	_ "golang.org/x/image/webp"
)

const (
	MaxImageWidth  = 4000
	MaxImageHeight = 4000
	JPEGQuality    = 90
	MaxBlurRadius  = 50
	MaxBrightness  = 100
	MaxContrast    = 100
	MaxSaturation  = 200
	MaxPixelate    = 50
)

// filterOrder fixes the order in which query filters are applied, so the
// same URL always renders the same image.
var filterOrder = []string{
	"crop_to_size",
	"resize",
	"rotate",
	"brightness_increase",
	"brightness_decrease",
	"contrast_increase",
	"contrast_decrease",
	"saturation_increase",
	"saturation_decrease",
	"gaussian_blur",
	"pixelate",
	"grayscale",
	"invert",
}

type FilterError struct {
	FilterName string
	Message    string
}

func (e FilterError) Error() string {
	return fmt.Sprintf("filter '%s': %s", e.FilterName, e.Message)
}

func parseIntParam(param, paramName string) (int, error) {
	if param == "" {
		return 0, fmt.Errorf("%s parameter is required", paramName)
	}

	value, err := strconv.Atoi(param)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: must be an integer", paramName)
	}

	if value < 0 {
		return 0, fmt.Errorf("%s must be positive", paramName)
	}

	return value, nil
}

func parseFloatParam(param, paramName string, min, max float32) (float32, error) {
	if param == "" {
		return 0, fmt.Errorf("%s parameter is required", paramName)
	}

	value, err := strconv.ParseFloat(param, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: must be a number", paramName)
	}

	floatVal := float32(value)
	if floatVal < min || floatVal > max {
		return 0, fmt.Errorf("%s must be between %.1f and %.1f", paramName, min, max)
	}

	return floatVal, nil
}

func parseDimensions(param, filterName string) (int, int, error) {
	if param == "" {
		return 0, 0, FilterError{filterName, "dimensions parameter is required"}
	}

	width, height, ok := strings.Cut(param, "x")
	if !ok {
		return 0, 0, FilterError{filterName, "dimensions must be in format 'widthxheight'"}
	}

	w, err := parseIntParam(width, "width")
	if err != nil {
		return 0, 0, FilterError{filterName, err.Error()}
	}

	h, err := parseIntParam(height, "height")
	if err != nil {
		return 0, 0, FilterError{filterName, err.Error()}
	}

	if w > MaxImageWidth || h > MaxImageHeight {
		return 0, 0, FilterError{filterName, fmt.Sprintf("dimensions too large (max %dx%d)", MaxImageWidth, MaxImageHeight)}
	}

	return w, h, nil
}

// floatFilter builds a filter from a bounded float parameter; sign flips
// the value for the *_decrease variants.
func floatFilter(filterName, param, label string, min, max, sign float32, build func(float32) gift.Filter) (gift.Filter, error) {
	value, err := parseFloatParam(param, label, min, max)
	if err != nil {
		return nil, FilterError{filterName, err.Error()}
	}
	return build(sign * value), nil
}

func createFilter(filterName, param string) (gift.Filter, error) {
	switch filterName {
	case "resize":
		width, height, err := parseDimensions(param, filterName)
		if err != nil {
			return nil, err
		}
		return gift.Resize(width, height, gift.LanczosResampling), nil

	case "crop_to_size":
		width, height, err := parseDimensions(param, filterName)
		if err != nil {
			return nil, err
		}
		return gift.CropToSize(width, height, gift.CenterAnchor), nil

	case "rotate":
		return floatFilter(filterName, param, "rotation angle", -360, 360, 1, func(v float32) gift.Filter {
			return gift.Rotate(v, color.Transparent, gift.CubicInterpolation)
		})

	case "brightness_increase":
		return floatFilter(filterName, param, "brightness", 0, MaxBrightness, 1, gift.Brightness)
	case "brightness_decrease":
		return floatFilter(filterName, param, "brightness", 0, MaxBrightness, -1, gift.Brightness)
	case "contrast_increase":
		return floatFilter(filterName, param, "contrast", 0, MaxContrast, 1, gift.Contrast)
	case "contrast_decrease":
		return floatFilter(filterName, param, "contrast", 0, MaxContrast, -1, gift.Contrast)
	case "saturation_increase":
		return floatFilter(filterName, param, "saturation", 0, MaxSaturation, 1, gift.Saturation)
	case "saturation_decrease":
		return floatFilter(filterName, param, "saturation", 0, MaxSaturation, -1, gift.Saturation)
	case "gaussian_blur":
		return floatFilter(filterName, param, "blur radius", 0.1, MaxBlurRadius, 1, gift.GaussianBlur)

	case "pixelate":
		value, err := parseIntParam(param, "pixelate size")
		if err != nil {
			return nil, FilterError{filterName, err.Error()}
		}
		if value > MaxPixelate {
			return nil, FilterError{filterName, fmt.Sprintf("pixelate size too large (max %d)", MaxPixelate)}
		}
		return gift.Pixelate(value), nil

	case "grayscale":
		return gift.Grayscale(), nil

	case "invert":
		return gift.Invert(), nil

	default:
		return nil, FilterError{filterName, "unsupported filter"}
	}
}

// parseFilters picks the supported filters out of the query parameters.
// Unknown parameters, such as a signed URL's expires and sig, are ignored. No
// filters means no transformation.
func parseFilters(queryParams map[string]string) ([]gift.Filter, error) {
	var filters []gift.Filter

	for _, filterName := range filterOrder {
		param, ok := queryParams[filterName]
		if !ok {
			continue
		}

		filter, err := createFilter(filterName, param)
		if err != nil {
			return nil, err
		}

		filters = append(filters, filter)
	}

	return filters, nil
}

func decodeImage(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v", err)
	}
	if cfg.Width > MaxImageWidth || cfg.Height > MaxImageHeight {
		return nil, fmt.Errorf("image too large (max %dx%d)", MaxImageWidth, MaxImageHeight)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v", err)
	}
	return img, nil
}

func processImage(src image.Image, filters []gift.Filter) image.Image {
	g := gift.New(filters...)
	dst := image.NewRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}

func encodeImage(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %v", err)
	}
	return buf.Bytes(), nil
}

// transformImage decodes data, applies filters and re-encodes as JPEG.
func transformImage(data []byte, filters []gift.Filter) ([]byte, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}
	return encodeImage(processImage(img, filters))
}
