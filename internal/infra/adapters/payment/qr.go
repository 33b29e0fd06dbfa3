package payment

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

const qrSizePx = 320

// RenderQRBase64 encodes a PIX copy-and-paste payload as a base64 PNG.
func RenderQRBase64(payload string) (string, error) {
	if payload == "" {
		return "", fmt.Errorf("qr: empty payload")
	}
	code, err := qr.Encode(payload, qr.M, qr.Auto)
	if err != nil {
		return "", fmt.Errorf("qr encode: %w", err)
	}
	scaled, err := barcode.Scale(code, qrSizePx, qrSizePx)
	if err != nil {
		return "", fmt.Errorf("qr scale: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return "", fmt.Errorf("qr png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
