package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const maxImageBytes = 5 << 20

var (
	// ErrInvalidImage indica datos que no son una imagen soportada.
	ErrInvalidImage = errors.New("invalid image data")
	ErrDisabled     = errors.New("image storage disabled")
)

// Uploader guarda una imagen de perfil y devuelve su URL pública.
type Uploader interface {
	Upload(ctx context.Context, userID, imageData string) (string, error)
}

// Image es una imagen decodificada lista para subir.
type Image struct {
	Data        []byte
	ContentType string
	Extension   string
}

var extensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// DecodeImage acepta un data URI ("data:image/png;base64,...") o base64 plano.
// El tipo real se detecta por contenido; el declarado en el URI debe coincidir.
func DecodeImage(imageData string) (Image, error) {
	raw := strings.TrimSpace(imageData)
	if raw == "" {
		return Image{}, fmt.Errorf("%w: empty", ErrInvalidImage)
	}

	declared := ""
	if strings.HasPrefix(raw, "data:") {
		meta, payload, ok := strings.Cut(raw[len("data:"):], ",")
		if !ok {
			return Image{}, fmt.Errorf("%w: malformed data uri", ErrInvalidImage)
		}
		mediaType, enc, _ := strings.Cut(meta, ";")
		if enc != "base64" {
			return Image{}, fmt.Errorf("%w: data uri must be base64", ErrInvalidImage)
		}
		declared = strings.ToLower(mediaType)
		raw = payload
	}

	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(raw, "="))
		if err != nil {
			return Image{}, fmt.Errorf("%w: bad base64", ErrInvalidImage)
		}
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("%w: empty", ErrInvalidImage)
	}
	if len(data) > maxImageBytes {
		return Image{}, fmt.Errorf("%w: image larger than %d bytes", ErrInvalidImage, maxImageBytes)
	}

	detected := http.DetectContentType(data)
	ext, ok := extensions[detected]
	if !ok {
		return Image{}, fmt.Errorf("%w: unsupported type %s", ErrInvalidImage, detected)
	}
	if declared != "" && declared != detected && !(declared == "image/jpg" && detected == "image/jpeg") {
		return Image{}, fmt.Errorf("%w: declared %s but got %s", ErrInvalidImage, declared, detected)
	}
	return Image{Data: data, ContentType: detected, Extension: ext}, nil
}

type disabledUploader struct {
	reason string
}

func NewDisabledUploader(reason string) Uploader {
	return &disabledUploader{reason: reason}
}

func (u *disabledUploader) Upload(_ context.Context, _, _ string) (string, error) {
	if u.reason == "" {
		return "", ErrDisabled
	}
	return "", fmt.Errorf("%w: %s", ErrDisabled, u.reason)
}
