package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/freelancehub/internal/models"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/services/users"
)

type AuthHandler struct {
	Users   *users.Service
	Session Session
}

func NewAuthHandler(svc *users.Service, session Session) *AuthHandler {
	return &AuthHandler{Users: svc, Session: session}
}

// SignUp registers an account with the given role and logs it in.
func (h *AuthHandler) SignUp(role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req users.SignUpInput
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "invalid body",
			})
		}

		u, err := h.Users.SignUp(c.UserContext(), req, role)
		if err != nil {
			return serviceFail(c, err)
		}

		if err := h.Session.Login(c, u); err != nil {
			return fail500(c, "failed to create token")
		}

		return success(c, fiber.StatusCreated, "Signup successful", fiber.Map{
			"user": privateUser(u, h.Users.PhotoURL(u)),
		})
	}
}

type LoginReq struct {
	Login    string `json:"login" form:"login"`
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func (r LoginReq) identifier() string {
	for _, v := range []string{r.Login, r.Username, r.Email} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginReq
	if err := c.BodyParser(&req); err != nil {
		return fail200(c, "Invalid body")
	}

	errs := users.FieldErrors{}
	if req.identifier() == "" {
		errs.Add("login", "This field is required.")
	}
	if req.Password == "" {
		errs.Add("password", "This field is required.")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	u, err := h.Users.Authenticate(c.UserContext(), req.identifier(), req.Password)
	switch {
	case errors.Is(err, users.ErrInvalidCredentials):
		// 200 so the frontend can show the message inline
		return fail200(c, "Invalid username or password")
	case errors.Is(err, users.ErrInactive):
		return fail200(c, "This account is inactive")
	case err != nil:
		return serviceFail(c, err)
	}

	if err := h.Session.Login(c, u); err != nil {
		return fail200(c, "failed to create token")
	}

	return success(c, fiber.StatusOK, "Login successful", fiber.Map{
		"user": privateUser(u, h.Users.PhotoURL(u)),
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.Session.Logout(c)
	return success(c, fiber.StatusOK, "Logout successful", nil)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	uid, err := getAuth(c)
	if err != nil {
		return err
	}

	u, err := h.Users.GetByID(c.UserContext(), uid)
	if errors.Is(err, users.ErrNotFound) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "User not found",
		})
	}
	if err != nil {
		return serviceFail(c, err)
	}

	return success(c, fiber.StatusOK, "", privateUser(u, h.Users.PhotoURL(u)))
}
