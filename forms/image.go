package forms

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ImageUpload is an uploaded file that decoded as a raster image.
type ImageUpload struct {
	Filename    string
	ContentType string
	Extension   string
	Format      string
	Width       int
	Height      int
	Data        []byte
}

func (u *ImageUpload) Reader() io.Reader { return bytes.NewReader(u.Data) }

func (u *ImageUpload) Size() int64 { return int64(len(u.Data)) }

var errNotImage = errors.New(MsgInvalidImage)

// ReadImage loads and verifies an uploaded image. The content is sniffed and fully
// decoded; the filename extension is never trusted.
func ReadImage(fh *multipart.FileHeader, maxBytes int64) (*ImageUpload, error) {
	if maxBytes > 0 && fh.Size > maxBytes {
		return nil, fmt.Errorf("image exceeds the %d MB upload limit", maxBytes>>20)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errNotImage
	}
	defer f.Close()

	var r io.Reader = f
	if maxBytes > 0 {
		r = io.LimitReader(f, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errNotImage
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("image exceeds the %d MB upload limit", maxBytes>>20)
	}
	return DecodeImage(fh.Filename, data)
}

// DecodeImage verifies data is a supported image (JPEG, PNG, GIF, WebP, BMP).
func DecodeImage(filename string, data []byte) (*ImageUpload, error) {
	if len(data) == 0 {
		return nil, errNotImage
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, errNotImage
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errNotImage
	}
	bounds := img.Bounds()
	return &ImageUpload{
		Filename:    filename,
		ContentType: mt.String(),
		Extension:   mt.Extension(),
		Format:      format,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Data:        data,
	}, nil
}
