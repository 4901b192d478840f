package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/Windi-Fikriyansyah/freelancehub/internal/models"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/services/users"
)

type UserHandler struct {
	Users *users.Service
}

func NewUserHandler(svc *users.Service) *UserHandler {
	return &UserHandler{Users: svc}
}

func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	u, err := h.Users.GetByUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		return serviceFail(c, err)
	}
	return success(c, fiber.StatusOK, "", publicUser(u, h.Users.PhotoURL(u)))
}

// UpdateProfile takes a partial JSON body; absent fields are left unchanged.
func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return err
	}

	var req users.ProfileInput
	if err := c.BodyParser(&req); err != nil {
		return fail200(c, "invalid body")
	}
	req.Photo = nil

	u, err := h.Users.UpdateProfile(c.UserContext(), userID, req)
	if err != nil {
		return serviceFail(c, err)
	}
	return success(c, fiber.StatusOK, "Your profile is updated successfully.", privateUser(u, h.Users.PhotoURL(u)))
}

func (h *UserHandler) UploadPhoto(c *fiber.Ctx) error {
	userID, err := getAuth(c)
	if err != nil {
		return err
	}

	file, err := c.FormFile("photo")
	if err != nil {
		return fail200(c, "photo is required (multipart field: photo)")
	}

	src, err := file.Open()
	if err != nil {
		return fail500(c, "failed to read upload")
	}
	defer src.Close()

	u, err := h.Users.UpdateProfile(c.UserContext(), userID, users.ProfileInput{
		Photo: &users.PhotoUpload{
			Filename: file.Filename,
			Size:     file.Size,
			Reader:   src,
			Flip:     flipFromForm(c),
		},
	})
	if err != nil {
		return serviceFail(c, err)
	}
	return success(c, fiber.StatusOK, "photo uploaded", privateUser(u, h.Users.PhotoURL(u)))
}

func (h *UserHandler) ListFreelancers(c *fiber.Ctx) error {
	page, err := h.Users.ListFreelancers(c.UserContext(), users.ListParams{
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", users.DefaultPageSize),
		Skill: c.Query("skill"),
		Query: c.Query("q"),
	})
	if err != nil {
		return serviceFail(c, err)
	}

	items := lo.Map(page.Items, func(u models.User, _ int) fiber.Map {
		return publicUser(&u, h.Users.PhotoURL(&u))
	})

	return c.JSON(fiber.Map{
		"success": true,
		"data":    items,
		"meta": fiber.Map{
			"page":        page.Page,
			"limit":       page.Limit,
			"total_items": page.Total,
			"total_pages": page.TotalPages,
		},
	})
}

func flipFromForm(c *fiber.Ctx) models.PhotoTransform {
	truthy := func(v string) bool { return v == "1" || v == "true" || v == "on" }
	return models.PhotoTransform{
		FlipH: truthy(c.FormValue("flip_h")),
		FlipV: truthy(c.FormValue("flip_v")),
	}
}
