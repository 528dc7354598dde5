// Package barcode turns an uploaded photo of a tag into the code printed on
// it. The decoded code is handed to the cart as a scan event.
package barcode

import (
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
)

var ErrNoBarcode = errors.New("no barcode found in image")

type Decoder interface {
	Decode(r io.Reader) (string, error)
}

// ImageDecoder tries the symbologies used on jewellery tags: EAN-13, EAN-8,
// Code 128, Code 39 and UPC-A.
type ImageDecoder struct {
	readers []gozxing.Reader
	hints   map[gozxing.DecodeHintType]interface{}
}

func NewImageDecoder() *ImageDecoder {
	return &ImageDecoder{
		readers: []gozxing.Reader{
			oned.NewEAN13Reader(),
			oned.NewEAN8Reader(),
			oned.NewCode128Reader(),
			oned.NewCode39Reader(),
			oned.NewUPCAReader(),
		},
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

func (d *ImageDecoder) Decode(r io.Reader) (string, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return "", err
	}
	return d.DecodeImage(img)
}

func (d *ImageDecoder) DecodeImage(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", err
	}
	for _, reader := range d.readers {
		result, err := reader.Decode(bmp, d.hints)
		if err != nil {
			continue
		}
		if text := strings.TrimSpace(result.GetText()); text != "" {
			return text, nil
		}
	}
	return "", ErrNoBarcode
}
