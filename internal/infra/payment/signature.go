package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifyMercadoPagoSignature checks the x-signature header ("ts=<unix>,v1=<hex>") of a webhook.
// The signed manifest is "id:<data id>;request-id:<x-request-id>;ts:<ts>;", with parts
// omitted when absent. Alphanumeric ids are signed lower-cased.
func VerifyMercadoPagoSignature(secret, header, requestID, dataID string) bool {
	if secret == "" || header == "" {
		return false
	}
	var ts, v1 string
	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch strings.TrimSpace(k) {
		case "ts":
			ts = strings.TrimSpace(v)
		case "v1":
			v1 = strings.TrimSpace(v)
		}
	}
	if ts == "" || v1 == "" {
		return false
	}

	expected := hex.EncodeToString(signManifest(secret, Manifest(dataID, requestID, ts)))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(v1)))
}

// Manifest builds the string the processor signs for a notification.
func Manifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID != "" {
		b.WriteString("id:" + strings.ToLower(dataID) + ";")
	}
	if requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	b.WriteString("ts:" + ts + ";")
	return b.String()
}

func signManifest(secret, manifest string) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(manifest))
	return h.Sum(nil)
}
