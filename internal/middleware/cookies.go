package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/auth-session-api/internal/models"
	"github.com/noah-isme/auth-session-api/pkg/config"
)

// Session cookie names.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

// CookieOptions controls how session cookies are written. Cookies are always HTTP-only.
type CookieOptions struct {
	Secure   bool
	Domain   string
	SameSite http.SameSite
}

// NewCookieOptions maps configuration onto CookieOptions.
func NewCookieOptions(cfg config.CookieConfig) CookieOptions {
	sameSite := http.SameSiteLaxMode
	switch strings.ToLower(cfg.SameSite) {
	case "strict":
		sameSite = http.SameSiteStrictMode
	case "none":
		sameSite = http.SameSiteNoneMode
	}
	return CookieOptions{Secure: cfg.Secure, Domain: cfg.Domain, SameSite: sameSite}
}

// SetSession writes the access and refresh cookies for tokens.
func (o CookieOptions) SetSession(c *gin.Context, tokens *models.SessionTokens) {
	now := time.Now()
	o.set(c, AccessCookie, tokens.Access.Value, tokens.Access.ExpiresAt.Sub(now))
	o.set(c, RefreshCookie, tokens.Refresh.Value, tokens.Refresh.ExpiresAt.Sub(now))
}

// Clear deletes both session cookies.
func (o CookieOptions) Clear(c *gin.Context) {
	c.SetSameSite(o.SameSite)
	c.SetCookie(AccessCookie, "", -1, "/", o.Domain, o.Secure, true)
	c.SetCookie(RefreshCookie, "", -1, "/", o.Domain, o.Secure, true)
}

func (o CookieOptions) set(c *gin.Context, name, value string, ttl time.Duration) {
	maxAge := int(ttl.Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	c.SetSameSite(o.SameSite)
	c.SetCookie(name, value, maxAge, "/", o.Domain, o.Secure, true)
}

// Cookie returns the named cookie value or an empty string.
func Cookie(c *gin.Context, name string) string {
	value, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return value
}
