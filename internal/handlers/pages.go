package handlers

import (
	"errors"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/freelancehub/internal/models"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/services/users"
)

const profileUpdatedMsg = "Your profile is updated successfully."

// PageHandler serves the server-rendered pages.
type PageHandler struct {
	Users         *users.Service
	Session       Session
	GoogleEnabled bool
}

func NewPageHandler(svc *users.Service, session Session, googleEnabled bool) *PageHandler {
	return &PageHandler{Users: svc, Session: session, GoogleEnabled: googleEnabled}
}

func (h *PageHandler) render(c *fiber.Ctx, name string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	data["CurrentUser"] = currentUsername(c)
	data["Flash"] = popFlash(c)
	return c.Render(name, data)
}

// lookup loads the user in the :username path segment, turning a miss into a 404 page.
func (h *PageHandler) lookup(c *fiber.Ctx) (*models.User, error) {
	u, err := h.Users.GetByUsername(c.UserContext(), c.Params("username"))
	if errors.Is(err, users.ErrNotFound) {
		return nil, fiber.NewError(fiber.StatusNotFound, "No user found matching the query")
	}
	return u, err
}

func (h *PageHandler) Home(c *fiber.Ctx) error {
	page, err := h.Users.ListFreelancers(c.UserContext(), users.ListParams{Limit: 6})
	if err != nil {
		return err
	}
	return h.render(c, "users/home", fiber.Map{"Latest": page.Items})
}

func (h *PageHandler) SignUpChooser(c *fiber.Ctx) error {
	return h.render(c, "users/signup", fiber.Map{
		"Title":         "Sign up",
		"GoogleEnabled": h.GoogleEnabled,
	})
}

func (h *PageHandler) signUpForm(c *fiber.Ctx, role models.Role, form users.SignUpInput, errs users.FieldErrors) error {
	if errs == nil {
		errs = users.FieldErrors{}
	}
	return h.render(c, "users/signup_form", fiber.Map{
		"Title":    "Sign up",
		"UserType": role.Label(),
		"Role":     string(role),
		"Form":     form,
		"Errors":   errs,
	})
}

// SignUpForm renders the signup form for role (user_type in the template context).
func (h *PageHandler) SignUpForm(role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return h.signUpForm(c, role, users.SignUpInput{}, nil)
	}
}

func (h *PageHandler) SignUpSubmit(role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var form users.SignUpInput
		if err := c.BodyParser(&form); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid form")
		}

		u, err := h.Users.SignUp(c.UserContext(), form, role)
		if fields, isValidation := users.AsValidation(err); isValidation {
			form.Password, form.PasswordConfirm = "", ""
			return h.signUpForm(c, role, form, fields)
		}
		if err != nil {
			return err
		}

		if err := h.Session.Login(c, u); err != nil {
			return err
		}
		return c.Redirect("/", fiber.StatusFound)
	}
}

func (h *PageHandler) LoginForm(c *fiber.Ctx) error {
	return h.render(c, "users/login", fiber.Map{
		"Title": "Log in",
		"Next":  safeNext(c.Query("next", "/")),
		"Error": c.Query("err"),
	})
}

func (h *PageHandler) LoginSubmit(c *fiber.Ctx) error {
	var req LoginReq
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid form")
	}
	next := safeNext(c.FormValue("next", "/"))

	u, err := h.Users.Authenticate(c.UserContext(), req.identifier(), req.Password)
	if err != nil {
		msg := "Please enter a correct username and password."
		switch {
		case errors.Is(err, users.ErrInactive):
			msg = "This account is inactive."
		case !errors.Is(err, users.ErrInvalidCredentials):
			return err
		}
		return h.render(c, "users/login", fiber.Map{
			"Title": "Log in",
			"Next":  next,
			"Login": req.identifier(),
			"Error": msg,
		})
	}

	if err := h.Session.Login(c, u); err != nil {
		return err
	}
	return c.Redirect(next, fiber.StatusFound)
}

func (h *PageHandler) Logout(c *fiber.Ctx) error {
	h.Session.Logout(c)
	return c.Redirect("/", fiber.StatusFound)
}

func (h *PageHandler) UserDetail(c *fiber.Ctx) error {
	u, err := h.lookup(c)
	if err != nil {
		return err
	}
	return h.render(c, "users/user_profile", fiber.Map{
		"Title":   u.FullName(),
		"profile": u,
		"IsSelf":  currentUsername(c) != "" && currentUsername(c) == u.Username,
	})
}

func (h *PageHandler) UserJobs(c *fiber.Ctx) error {
	u, err := h.lookup(c)
	if err != nil {
		return err
	}
	return h.render(c, "users/user_job_profile", fiber.Map{
		"Title": u.FullName(),
		"user":  u,
	})
}

type profileForm struct {
	FirstName string
	LastName  string
	Profile   string
	Skills    string
}

// editable loads the profile in the path and checks that the visitor owns it.
func (h *PageHandler) editable(c *fiber.Ctx) (*models.User, error) {
	uid, err := getAuth(c)
	if err != nil {
		return nil, err
	}
	u, err := h.lookup(c)
	if err != nil {
		return nil, err
	}
	if u.ID != uid {
		return nil, fiber.NewError(fiber.StatusForbidden, "You can only edit your own profile")
	}
	return u, nil
}

func (h *PageHandler) renderEdit(c *fiber.Ctx, u *models.User, form profileForm, errs users.FieldErrors) error {
	if errs == nil {
		errs = users.FieldErrors{}
	}
	return h.render(c, "users/user_profile_update", fiber.Map{
		"Title":   "Edit profile",
		"profile": u,
		"Form":    form,
		"Errors":  errs,
	})
}

func (h *PageHandler) EditForm(c *fiber.Ctx) error {
	u, err := h.editable(c)
	if err != nil {
		return err
	}
	return h.renderEdit(c, u, profileForm{
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Profile:   u.Profile,
		Skills:    models.JoinSkills(u.Skills),
	}, nil)
}

func (h *PageHandler) EditSubmit(c *fiber.Ctx) error {
	u, err := h.editable(c)
	if err != nil {
		return err
	}

	form := profileForm{
		FirstName: c.FormValue("first_name"),
		LastName:  c.FormValue("last_name"),
		Profile:   c.FormValue("profile"),
		Skills:    c.FormValue("skills"),
	}
	in := users.ProfileInput{
		FirstName:  &form.FirstName,
		LastName:   &form.LastName,
		Profile:    &form.Profile,
		Skills:     &form.Skills,
		ClearPhoto: c.FormValue("clear_photo") != "",
	}

	if file, ferr := c.FormFile("profile_photo"); ferr == nil && file.Filename != "" && file.Size > 0 {
		src, err := file.Open()
		if err != nil {
			return err
		}
		defer src.Close()
		in.Photo = &users.PhotoUpload{
			Filename: file.Filename,
			Size:     file.Size,
			Reader:   src,
			Flip:     flipFromForm(c),
		}
	}

	updated, err := h.Users.UpdateProfile(c.UserContext(), u.ID, in)
	if fields, isValidation := users.AsValidation(err); isValidation {
		return h.renderEdit(c, u, form, fields)
	}
	if err != nil {
		return err
	}

	log.Debug("profile form saved", "username", updated.Username)
	setFlash(c, profileUpdatedMsg)
	return c.Redirect("/users/"+updated.Username, fiber.StatusFound)
}

func (h *PageHandler) ListFreelancers(c *fiber.Ctx) error {
	params := users.ListParams{
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", users.DefaultPageSize),
		Skill: c.Query("skill"),
		Query: c.Query("q"),
	}
	page, err := h.Users.ListFreelancers(c.UserContext(), params)
	if err != nil {
		return err
	}
	return h.render(c, "users/freelancer_list", fiber.Map{
		"Title":       "Freelancers",
		"freelancers": page.Items,
		"Page":        page,
		"Skill":       params.Skill,
		"Query":       params.Query,
	})
}
