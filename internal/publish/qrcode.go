package publish

import (
	"errors"
	"fmt"

	"github.com/skip2/go-qrcode"
)

const DefaultQRSize = 256

// MakeQRCode renders url as a PNG at medium error correction. Output is
// byte-identical for the same url and size.
func MakeQRCode(url string, size int) ([]byte, error) {
	if url == "" {
		return nil, errors.New("publish: qr url is empty")
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	png, err := qrcode.Encode(url, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("publish: encode qr: %w", err)
	}
	return png, nil
}
