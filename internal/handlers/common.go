package handlers

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/Windi-Fikriyansyah/freelancehub/internal/middleware"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/models"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/services/users"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/utils"
)

const flashCookie = "fh_flash"

// ========= Envelope helpers =========

func success(c *fiber.Ctx, status int, message string, data interface{}) error {
	resp := fiber.Map{
		"success": true,
		"message": message,
	}
	if data != nil {
		resp["data"] = data
	}
	return c.Status(status).JSON(resp)
}

func fail200(c *fiber.Ctx, message string, extra ...fiber.Map) error {
	resp := fiber.Map{
		"success": false,
		"message": message,
	}
	if len(extra) > 0 {
		for k, v := range extra[0] {
			resp[k] = v
		}
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

func fail500(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

func validationFail(c *fiber.Ctx, errs users.FieldErrors) error {
	return fail200(c, "Validation error", fiber.Map{"errors": errs})
}

// serviceFail maps errors from the users service onto the JSON envelope.
func serviceFail(c *fiber.Ctx, err error) error {
	if fields, isValidation := users.AsValidation(err); isValidation {
		return validationFail(c, fields)
	}
	if errors.Is(err, users.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "User not found"})
	}
	log.Error("request failed", "path", c.Path(), "error", err)
	return fail500(c, "Internal server error")
}

func getAuth(c *fiber.Ctx) (uuid.UUID, error) {
	rawID, ok := c.Locals("userId").(string)
	if !ok || rawID == "" {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	uID, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "invalid user id")
	}
	return uID, nil
}

func currentUsername(c *fiber.Ctx) string {
	name, _ := c.Locals("username").(string)
	return name
}

// ========= Session cookie =========

// Session issues and clears the jm_token cookie shared by pages and API.
type Session struct {
	JWTSecret string
	Expires   int // minutes
	Secure    bool
}

func (s Session) Login(c *fiber.Ctx, u *models.User) error {
	token, err := utils.SignJWT(s.JWTSecret, u.ID.String(), u.Username, string(u.Role()), s.Expires)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   s.Secure,
		SameSite: "Lax",
		MaxAge:   s.Expires * 60,
	})
	return nil
}

func (s Session) Logout(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   s.Secure,
		SameSite: "Lax",
	})
}

// ========= Flash messages =========

func setFlash(c *fiber.Ctx, msg string) {
	c.Cookie(&fiber.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(msg),
		Path:     "/",
		HTTPOnly: true,
		SameSite: "Lax",
		MaxAge:   60,
	})
}

// popFlash reads the pending flash message and clears it.
func popFlash(c *fiber.Ctx) string {
	raw := c.Cookies(flashCookie)
	if raw == "" {
		return ""
	}
	c.ClearCookie(flashCookie)
	msg, err := url.QueryUnescape(raw)
	if err != nil {
		return ""
	}
	return msg
}

// safeNext keeps redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

// ========= JSON views =========

func publicUser(u *models.User, photoURL string) fiber.Map {
	return fiber.Map{
		"id":            u.ID,
		"username":      u.Username,
		"first_name":    u.FirstName,
		"last_name":     u.LastName,
		"full_name":     u.FullName(),
		"profile":       u.Profile,
		"profile_photo": photoURL,
		"role":          u.Role(),
		"is_freelancer": u.IsFreelancer,
		"is_owner":      u.IsOwner,
		"skills":        lo.Map(u.Skills, func(s models.Skill, _ int) string { return s.Name }),
		"date_joined":   u.DateJoined,
	}
}

func privateUser(u *models.User, photoURL string) fiber.Map {
	m := publicUser(u, photoURL)
	m["email"] = u.Email
	m["is_active"] = u.IsActive
	return m
}
