// Package server assembles the fiber application: views, middleware and routes.
package server

import (
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/Windi-Fikriyansyah/freelancehub/internal/config"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/handlers"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/middleware"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/models"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/realtime"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/services/media"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/services/users"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/web"
)

type Deps struct {
	Config *config.Config
	Users  *users.Service
	Hub    *realtime.Hub
	Logger *log.Logger
}

func New(d Deps) *fiber.App {
	cfg := d.Config

	engine := web.NewEngine(func(u models.User) string { return d.Users.PhotoURL(&u) })

	app := fiber.New(fiber.Config{
		AppName:               "freelancehub",
		Views:                 engine,
		ViewsLayout:           web.Layout,
		ErrorHandler:          middleware.ErrorHandler(),
		BodyLimit:             media.MaxPhotoBytes + 1024*1024,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(middleware.AccessLog(d.Logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins(cfg),
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true,
	}))

	app.Static("/uploads", cfg.UploadDir)

	session := handlers.Session{
		JWTSecret: cfg.JWTSecret,
		Expires:   cfg.JWTExpiresMin,
		Secure:    cfg.SecureCookies,
	}

	authH := handlers.NewAuthHandler(d.Users, session)
	userH := handlers.NewUserHandler(d.Users)
	pageH := handlers.NewPageHandler(d.Users, session, cfg.GoogleEnabled())
	feedH := handlers.NewFeedHandler(d.Hub)
	googleH := &handlers.GoogleOAuthHandler{
		Users:           d.Users,
		Session:         session,
		GoogleClientID:  cfg.GoogleClientID,
		GoogleSecret:    cfg.GoogleSecret,
		GoogleRedirect:  cfg.GoogleRedirect,
		FrontendBaseURL: cfg.FrontendBaseURL,
	}

	// json api
	api := app.Group("/api")
	api.Post("/auth/signup/freelancer", authH.SignUp(models.RoleFreelancer))
	api.Post("/auth/signup/owner", authH.SignUp(models.RoleOwner))
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Get("/auth/google/start", googleH.GoogleStart)
	api.Get("/auth/google/callback", googleH.GoogleCallback)
	api.Get("/users/:username", userH.GetUser)
	api.Get("/freelancers", userH.ListFreelancers)

	protected := api.Group("/",
		middleware.JWTFromCookie(cfg.JWTSecret),
		middleware.AttachJWTLocals(),
	)
	protected.Get("/me", authH.Me)
	protected.Patch("/profile", userH.UpdateProfile)
	protected.Post("/profile/photo",
		middleware.RequireRoles(string(models.RoleFreelancer), string(models.RoleOwner)),
		userH.UploadPhoto,
	)

	app.Get("/ws/freelancers", middleware.OptionalJWT(cfg.JWTSecret), feedH.Upgrade, websocket.New(feedH.WebSocketHandler))

	// pages
	pages := app.Group("/", middleware.OptionalJWT(cfg.JWTSecret))
	pages.Get("/", pageH.Home)
	pages.Get("/signup", pageH.SignUpChooser)
	pages.Get("/signup/freelancer", pageH.SignUpForm(models.RoleFreelancer))
	pages.Post("/signup/freelancer", pageH.SignUpSubmit(models.RoleFreelancer))
	pages.Get("/signup/owner", pageH.SignUpForm(models.RoleOwner))
	pages.Post("/signup/owner", pageH.SignUpSubmit(models.RoleOwner))
	pages.Get("/login", pageH.LoginForm)
	pages.Post("/login", pageH.LoginSubmit)
	pages.Post("/logout", pageH.Logout)
	pages.Get("/freelancers", pageH.ListFreelancers)
	pages.Get("/users/:username", pageH.UserDetail)
	pages.Get("/users/:username/jobs", pageH.UserJobs)

	loginRequired := middleware.RequireLogin("/login")
	pages.Get("/users/:username/edit", loginRequired, pageH.EditForm)
	pages.Post("/users/:username/edit", loginRequired, pageH.EditSubmit)

	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Page not found")
	})

	return app
}

func allowedOrigins(cfg *config.Config) string {
	origins := []string{}
	for _, o := range []string{cfg.FrontendBaseURL, cfg.AppBaseURL} {
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return "http://localhost:3000"
	}
	return strings.Join(origins, ", ")
}
