package utils

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
)

// GenerateQRCode encodes a payment URL as a PNG QR image and returns it
// as a data URI suitable for inline rendering by the caller's widget.
func GenerateQRCode(url string) (string, error) {
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
