package secret

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// Renderer turns a credential value into a scannable image.
type Renderer interface {
	Render(content string) (string, error)
}

// QRRenderer renders PNG QR codes as data URLs.
type QRRenderer struct {
	Size  int
	Level qrcode.RecoveryLevel
}

// NewQRRenderer returns a renderer producing size x size images.
func NewQRRenderer(size int) *QRRenderer {
	if size <= 0 {
		size = 256
	}
	return &QRRenderer{Size: size, Level: qrcode.Medium}
}

// Render encodes content into a "data:image/png;base64,..." string.
func (r *QRRenderer) Render(content string) (string, error) {
	png, err := qrcode.Encode(content, r.Level, r.Size)
	if err != nil {
		return "", fmt.Errorf("qr encode: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
