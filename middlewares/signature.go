package middlewares

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"

	"wagerd/config"
	"wagerd/helpers"
)

// Canonicalize builds the provider's canonical query-string encoding:
// every parameter except the signature itself, keys sorted, k=v joined
// with '&'. Repeated keys keep their original order within the key.
func Canonicalize(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range values[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(v)
		}
	}
	return b.String()
}

// Sign computes the HMAC-SHA256 hex digest of the canonical encoding.
func Sign(values url.Values, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(Canonicalize(values)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a form payload's signature for constant-time
// equality against the expected digest.
func VerifySignature(values url.Values, secret string) bool {
	provided := values.Get("hash")
	if provided == "" || secret == "" {
		return false
	}
	expected := Sign(values, secret)
	return hmac.Equal([]byte(strings.ToLower(provided)), []byte(expected))
}

// ProviderAuth rejects callbacks whose HMAC doesn't verify, before any
// processing touches the ledgers. The rejection still rides an HTTP 200
// per the provider contract.
func ProviderAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		values, err := url.ParseQuery(string(c.Body()))
		if err != nil {
			return helpers.ProviderError(c, helpers.ProviderErrInternal, "malformed payload")
		}
		if !VerifySignature(values, config.ProviderSecret()) {
			return helpers.ProviderError(c, helpers.ProviderErrInternal, "invalid signature")
		}
		return c.Next()
	}
}
