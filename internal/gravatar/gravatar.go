// Package gravatar builds fallback avatar URLs from email addresses.
package gravatar

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
)

const baseURL = "https://www.gravatar.com/avatar/"

// Options controls gravatar URL generation.
type Options struct {
	Enabled bool `mapstructure:"enabled"`
	// DefaultImage is served when no gravatar exists, e.g. "identicon" or "mp".
	DefaultImage string `mapstructure:"default_image"`
	// Rating is the maximum rating: g, pg, r or x.
	Rating string `mapstructure:"rating"`
	// Size in pixels, 1-2048. Zero leaves it to gravatar.
	Size int `mapstructure:"size"`
}

// URL returns the gravatar URL for email, or "" when disabled or email is blank.
func URL(email string, o Options) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if !o.Enabled || email == "" {
		return ""
	}

	sum := sha256.Sum256([]byte(email))
	u := baseURL + hex.EncodeToString(sum[:])

	params := url.Values{}
	if o.DefaultImage != "" {
		params.Set("d", o.DefaultImage)
	}
	if o.Rating != "" {
		params.Set("r", o.Rating)
	}
	if o.Size > 0 {
		params.Set("s", strconv.Itoa(o.Size))
	}
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// ValidRating reports whether r is a rating gravatar understands.
func ValidRating(r string) bool {
	switch r {
	case "", "g", "pg", "r", "x":
		return true
	}
	return false
}

// ValidSize reports whether n is an acceptable size; zero means unset.
func ValidSize(n int) bool {
	return n >= 0 && n <= 2048
}
