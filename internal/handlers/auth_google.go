package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/Windi-Fikriyansyah/freelancehub/internal/models"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/services/users"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type GoogleOAuthHandler struct {
	Users           *users.Service
	Session         Session
	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string

	// Endpoint and UserInfoURL default to Google's.
	Endpoint    oauth2.Endpoint
	UserInfoURL string
}

func (h *GoogleOAuthHandler) oauthCfg() *oauth2.Config {
	endpoint := h.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	return &oauth2.Config{
		ClientID:     h.GoogleClientID,
		ClientSecret: h.GoogleSecret,
		RedirectURL:  h.GoogleRedirect,
		Endpoint:     endpoint,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

func (h *GoogleOAuthHandler) userInfoURL() string {
	if h.UserInfoURL != "" {
		return h.UserInfoURL
	}
	return googleUserInfoURL
}

func randomState(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (h *GoogleOAuthHandler) tempCookie(c *fiber.Ctx, name, value string, maxAge int) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.Session.Secure,
		SameSite: "Lax",
		MaxAge:   maxAge,
	})
}

// GoogleStart redirects to Google. ?as=freelancer|owner picks the role used
// when the callback has to create a new account.
func (h *GoogleOAuthHandler) GoogleStart(c *fiber.Ctx) error {
	role, valid := models.ParseRole(c.Query("as", string(models.RoleFreelancer)))
	if !valid {
		return fail200(c, "as must be freelancer or owner")
	}

	st := randomState(32)
	h.tempCookie(c, "oauth_state", st, 10*60)
	h.tempCookie(c, "oauth_next", safeNext(c.Query("next", "/")), 10*60)
	h.tempCookie(c, "oauth_role", string(role), 10*60)

	authURL := h.oauthCfg().AuthCodeURL(st, oauth2.AccessTypeOffline)
	return c.Redirect(authURL, http.StatusTemporaryRedirect)
}

type googleUserInfo struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (h *GoogleOAuthHandler) GoogleCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Missing code/state")
	}

	stCookie := c.Cookies("oauth_state")
	if stCookie == "" || stCookie != state {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid state")
	}
	next := safeNext(c.Cookies("oauth_next"))
	role, valid := models.ParseRole(c.Cookies("oauth_role"))
	if !valid {
		role = models.RoleFreelancer
	}

	tok, err := h.oauthCfg().Exchange(c.UserContext(), code)
	if err != nil {
		log.Warn("google code exchange failed", "error", err)
		return c.Status(fiber.StatusBadRequest).SendString("Failed to exchange code")
	}

	client := h.oauthCfg().Client(c.UserContext(), tok)
	resp, err := client.Get(h.userInfoURL())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Failed to fetch userinfo")
	}
	defer resp.Body.Close()

	var gu googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Failed to decode userinfo")
	}
	if strings.TrimSpace(gu.Email) == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Email not found from Google")
	}
	// an unverified address must not log into the account that owns it
	if !gu.VerifiedEmail {
		log.Warn("google sign-in with unverified email", "email", gu.Email)
		return c.Status(fiber.StatusBadRequest).SendString("Email not verified by Google")
	}

	u, created, err := h.Users.FindOrCreateOAuthUser(c.UserContext(), gu.Email, gu.Name, role)
	if err != nil {
		log.Error("google sign-in failed", "email", gu.Email, "error", err)
		return fail500(c, "failed to create account")
	}

	h.tempCookie(c, "oauth_state", "", -1)
	h.tempCookie(c, "oauth_next", "", -1)
	h.tempCookie(c, "oauth_role", "", -1)

	if !u.IsActive {
		return c.Redirect(h.FrontendBaseURL+"/login?err="+url.QueryEscape("This account is inactive"), http.StatusTemporaryRedirect)
	}

	if err := h.Session.Login(c, u); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to sign jwt")
	}

	log.Info("google sign-in", "username", u.Username, "created", created)
	return c.Redirect(h.FrontendBaseURL+next, http.StatusTemporaryRedirect)
}
