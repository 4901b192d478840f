package media

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"strings"

	"github.com/Windi-Fikriyansyah/freelancehub/internal/config"
)

// GravatarURL returns the avatar URL for email, or "" when gravatar is
// disabled or the email is empty.
func GravatarURL(email string, cfg *config.GravatarConfig) string {
	if cfg == nil || !cfg.Enabled || email == "" {
		return ""
	}
	email = strings.TrimSpace(strings.ToLower(email))
	hash := sha256.Sum256([]byte(email))

	u := fmt.Sprintf("https://www.gravatar.com/avatar/%x", hash)

	params := url.Values{}
	if cfg.DefaultImage != "" {
		params.Add("d", cfg.DefaultImage)
	}
	if cfg.Size > 0 {
		params.Add("s", fmt.Sprintf("%d", cfg.Size))
	}
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}
