package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Windi-Fikriyansyah/freelancehub/internal/cache"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/config"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/db"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/middleware"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/models"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/realtime"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/services/media"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/services/users"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/utils"
)

type ServerTestSuite struct {
	suite.Suite
	app    *fiber.App
	users  *users.Service
	cfg    *config.Config
	cancel context.CancelFunc
}

func (s *ServerTestSuite) SetupTest() {
	gdb, err := db.Connect("sqlite", "file::memory:")
	s.Require().NoError(err)
	s.Require().NoError(db.Migrate(gdb))

	s.cfg = &config.Config{
		JWTSecret:     "test-secret",
		JWTExpiresMin: 60,
		UploadDir:     s.T().TempDir(),
		Gravatar:      config.GravatarConfig{Enabled: true, DefaultImage: "identicon", Size: 80},
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	hub := realtime.NewHub()
	go hub.Run(ctx)

	s.users = users.NewService(gdb, cache.NewMemory(time.Minute), media.NewPhotoStore(s.cfg.UploadDir, ""), realtime.NewPublisher(hub, nil), nil)
	s.users.Gravatar = &s.cfg.Gravatar

	s.app = New(Deps{Config: s.cfg, Users: s.users, Hub: hub, Logger: log.New(io.Discard)})
}

func (s *ServerTestSuite) TearDownTest() {
	s.cancel()
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

// ========= helpers =========

func (s *ServerTestSuite) do(req *http.Request, cookies ...*http.Cookie) (*http.Response, string) {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)
	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp, string(body)
}

func (s *ServerTestSuite) get(path string, cookies ...*http.Cookie) (*http.Response, string) {
	return s.do(httptest.NewRequest(http.MethodGet, path, nil), cookies...)
}

func (s *ServerTestSuite) postForm(path string, form url.Values, cookies ...*http.Cookie) (*http.Response, string) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)
	return s.do(req, cookies...)
}

func (s *ServerTestSuite) sendJSON(method, path string, payload any, cookies ...*http.Cookie) (*http.Response, map[string]any) {
	b, err := json.Marshal(payload)
	s.Require().NoError(err)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, body := s.do(req, cookies...)
	var out map[string]any
	s.Require().NoError(json.Unmarshal([]byte(body), &out), body)
	return resp, out
}

func (s *ServerTestSuite) createUser(username string, role models.Role) *models.User {
	u, err := s.users.SignUp(context.Background(), users.SignUpInput{
		Username:        username,
		Email:           username + "@example.com",
		Password:        "correct-horse",
		PasswordConfirm: "correct-horse",
	}, role)
	s.Require().NoError(err)
	return u
}

func (s *ServerTestSuite) sessionFor(u *models.User) *http.Cookie {
	token, err := utils.SignJWT(s.cfg.JWTSecret, u.ID.String(), u.Username, string(u.Role()), 60)
	s.Require().NoError(err)
	return &http.Cookie{Name: middleware.CookieName, Value: token}
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ========= pages =========

func (s *ServerTestSuite) TestHomeAndSignupChooser() {
	s.createUser("alice", models.RoleFreelancer)

	resp, body := s.get("/")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(body, "Freelancehub")
	s.Contains(body, "/users/alice")
	s.NotEmpty(resp.Header.Get(middleware.RequestIDHeader))

	resp, body = s.get("/signup")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(body, `href="/signup/freelancer"`)
	s.Contains(body, `href="/signup/owner"`)
}

func (s *ServerTestSuite) TestSignupFormsCarryUserType() {
	_, body := s.get("/signup/freelancer")
	s.Contains(body, "Sign up as a freelancer")
	s.Contains(body, `action="/signup/freelancer"`)

	_, body = s.get("/signup/owner")
	s.Contains(body, "Sign up as a project owner")
	s.Contains(body, `action="/signup/owner"`)
}

func (s *ServerTestSuite) TestSignupSubmit() {
	resp, _ := s.postForm("/signup/owner", url.Values{
		"username":         {"acme"},
		"email":            {"acme@example.com"},
		"password":         {"correct-horse"},
		"password_confirm": {"correct-horse"},
	})
	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/", resp.Header.Get("Location"))
	s.NotNil(cookieNamed(resp, middleware.CookieName), "signup logs the user in")

	u, err := s.users.GetByUsername(context.Background(), "acme")
	s.Require().NoError(err)
	s.True(u.IsOwner)
	s.False(u.IsFreelancer)
}

func (s *ServerTestSuite) TestSignupSubmitInvalidRerenders() {
	resp, body := s.postForm("/signup/freelancer", url.Values{
		"username":         {"jdoe"},
		"email":            {"jdoe@example.com"},
		"password":         {"correct-horse"},
		"password_confirm": {"different-horse"},
	})
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(body, "The two password fields didn")
	s.Contains(body, `value="jdoe"`)
	s.Nil(cookieNamed(resp, middleware.CookieName))
}

func (s *ServerTestSuite) TestUserDetail() {
	s.createUser("jdoe", models.RoleFreelancer)

	resp, body := s.get("/users/jdoe")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(body, "@jdoe")
	s.Contains(body, "gravatar.com/avatar/")
	s.NotContains(body, "Edit profile")

	resp, body = s.get("/users/ghost")
	s.Equal(http.StatusNotFound, resp.StatusCode)
	s.Contains(body, "No user found")
}

func (s *ServerTestSuite) TestUserJobProfile() {
	s.createUser("jdoe", models.RoleOwner)

	resp, body := s.get("/users/jdoe/jobs")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(body, "jobs")
	s.Contains(body, "project owner")
}

func (s *ServerTestSuite) TestEditRequiresLogin() {
	s.createUser("jdoe", models.RoleFreelancer)

	resp, _ := s.get("/users/jdoe/edit")
	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/login?next=%2Fusers%2Fjdoe%2Fedit", resp.Header.Get("Location"))

	resp, _ = s.get("/users/jdoe/edit?tab=skills&focus=1")
	location := resp.Header.Get("Location")
	s.Equal("/login?next=%2Fusers%2Fjdoe%2Fedit%3Ftab%3Dskills%26focus%3D1", location)

	_, body := s.get(location)
	s.Contains(body, `value="/users/jdoe/edit?tab=skills&amp;focus=1"`)
}

func (s *ServerTestSuite) TestEditOtherProfileForbidden() {
	s.createUser("jdoe", models.RoleFreelancer)
	intruder := s.createUser("mallory", models.RoleOwner)

	resp, _ := s.get("/users/jdoe/edit", s.sessionFor(intruder))
	s.Equal(http.StatusForbidden, resp.StatusCode)

	resp, _ = s.postForm("/users/jdoe/edit", url.Values{"first_name": {"pwned"}}, s.sessionFor(intruder))
	s.Equal(http.StatusForbidden, resp.StatusCode)

	u, err := s.users.GetByUsername(context.Background(), "jdoe")
	s.Require().NoError(err)
	s.Empty(u.FirstName)
}

func (s *ServerTestSuite) TestEditOwnProfile() {
	u := s.createUser("jdoe", models.RoleFreelancer)
	session := s.sessionFor(u)

	resp, body := s.get("/users/jdoe/edit", session)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(body, `name="skills"`)

	resp, _ = s.postForm("/users/jdoe/edit", url.Values{
		"first_name": {"Jane"},
		"last_name":  {"Doe"},
		"profile":    {"Gopher for hire"},
		"skills":     {"Go, Fiber"},
	}, session)
	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/users/jdoe", resp.Header.Get("Location"))

	flash := cookieNamed(resp, "fh_flash")
	s.Require().NotNil(flash)

	resp, body = s.get("/users/jdoe", session, flash)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(body, "Your profile is updated successfully.")
	s.Contains(body, "Jane Doe")
	s.Contains(body, "Gopher for hire")
	s.Contains(body, `href="/freelancers?skill=fiber"`)
	s.Contains(body, "Edit profile")
}

func (s *ServerTestSuite) TestEditOwnProfileMultipart() {
	u := s.createUser("jdoe", models.RoleFreelancer)

	var img bytes.Buffer
	s.Require().NoError(png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 30, 20))))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	s.Require().NoError(mw.WriteField("first_name", "Jane"))
	s.Require().NoError(mw.WriteField("skills", "Go, Fiber"))
	s.Require().NoError(mw.WriteField("flip_h", "1"))
	fw, err := mw.CreateFormFile("profile_photo", "me.png")
	s.Require().NoError(err)
	_, err = fw.Write(img.Bytes())
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/users/jdoe/edit", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, _ := s.do(req, s.sessionFor(u))
	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/users/jdoe", resp.Header.Get("Location"))

	saved, err := s.users.GetByUsername(context.Background(), "jdoe")
	s.Require().NoError(err)
	s.Equal("Jane", saved.FirstName)
	s.ElementsMatch([]string{"Go", "Fiber"}, saved.SkillNames())
	s.True(saved.Transform().FlipH)
	s.False(saved.Transform().FlipV)
	s.True(strings.HasPrefix(saved.ProfilePhoto, "/uploads/profile_photos/"+u.ID.String()+"/"), saved.ProfilePhoto)

	resp, _ = s.get(saved.ProfilePhoto)
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *ServerTestSuite) TestEditOwnProfileInvalid() {
	u := s.createUser("jdoe", models.RoleFreelancer)

	resp, body := s.postForm("/users/jdoe/edit", url.Values{
		"first_name": {strings.Repeat("x", 151)},
	}, s.sessionFor(u))
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(body, "Ensure this value has at most 150 characters.")
}

func (s *ServerTestSuite) TestFreelancerList() {
	s.createUser("alice", models.RoleFreelancer)
	s.createUser("bob", models.RoleFreelancer)
	s.createUser("acme", models.RoleOwner)

	resp, body := s.get("/freelancers")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(body, "/users/alice")
	s.Contains(body, "/users/bob")
	s.NotContains(body, "/users/acme")
	s.Contains(body, "2 freelancer(s)")

	_, body = s.get("/freelancers?q=ali")
	s.Contains(body, "/users/alice")
	s.NotContains(body, "/users/bob")
}

func (s *ServerTestSuite) TestLoginAndLogout() {
	s.createUser("jdoe", models.RoleFreelancer)

	resp, body := s.postForm("/login", url.Values{"login": {"jdoe"}, "password": {"nope-nope"}})
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(body, "Please enter a correct username and password.")

	resp, _ = s.postForm("/login", url.Values{
		"login":    {"jdoe@example.com"},
		"password": {"correct-horse"},
		"next":     {"/users/jdoe/edit"},
	})
	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/users/jdoe/edit", resp.Header.Get("Location"))
	session := cookieNamed(resp, middleware.CookieName)
	s.Require().NotNil(session)

	_, body = s.get("/", session)
	s.Contains(body, "Log out")

	resp, _ = s.postForm("/login", url.Values{
		"login":    {"jdoe"},
		"password": {"correct-horse"},
		"next":     {"//evil.example.com"},
	})
	s.Equal("/", resp.Header.Get("Location"))

	resp, _ = s.postForm("/logout", url.Values{}, session)
	s.Equal(http.StatusFound, resp.StatusCode)
	cleared := cookieNamed(resp, middleware.CookieName)
	s.Require().NotNil(cleared)
	s.Empty(cleared.Value)
}

func (s *ServerTestSuite) TestUnknownPage() {
	resp, body := s.get("/nowhere")
	s.Equal(http.StatusNotFound, resp.StatusCode)
	s.Contains(body, "Page not found")
}

// ========= json api =========

func (s *ServerTestSuite) TestAPISignupAndMe() {
	resp, out := s.sendJSON(http.MethodPost, "/api/auth/signup/freelancer", map[string]string{
		"username":         "jdoe",
		"email":            "jdoe@example.com",
		"password":         "correct-horse",
		"password_confirm": "correct-horse",
	})
	s.Equal(http.StatusCreated, resp.StatusCode)
	s.Equal(true, out["success"])
	session := cookieNamed(resp, middleware.CookieName)
	s.Require().NotNil(session)

	resp, out = s.sendJSON(http.MethodGet, "/api/me", nil, session)
	s.Equal(http.StatusOK, resp.StatusCode)
	data := out["data"].(map[string]any)
	s.Equal("jdoe", data["username"])
	s.Equal("freelancer", data["role"])
	s.Equal("jdoe@example.com", data["email"])
}

func (s *ServerTestSuite) TestAPISignupValidation() {
	resp, out := s.sendJSON(http.MethodPost, "/api/auth/signup/owner", map[string]string{
		"username": "jdoe",
		"email":    "not-an-email",
		"password": "123456789",
	})
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(false, out["success"])
	errs := out["errors"].(map[string]any)
	s.Contains(errs, "email")
	s.Contains(errs, "password_confirm")
}

func (s *ServerTestSuite) TestAPIMeRequiresCookie() {
	resp, out := s.sendJSON(http.MethodGet, "/api/me", nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal(false, out["success"])

	resp, _ = s.sendJSON(http.MethodGet, "/api/me", nil, &http.Cookie{Name: middleware.CookieName, Value: "garbage"})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *ServerTestSuite) TestAPILogin() {
	s.createUser("jdoe", models.RoleOwner)

	resp, out := s.sendJSON(http.MethodPost, "/api/auth/login", map[string]string{"username": "jdoe", "password": "bad-password"})
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(false, out["success"])

	resp, out = s.sendJSON(http.MethodPost, "/api/auth/login", map[string]string{"email": "jdoe@example.com", "password": "correct-horse"})
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(true, out["success"])
	s.NotNil(cookieNamed(resp, middleware.CookieName))
}

func (s *ServerTestSuite) TestAPIProfileUpdateAndPublicView() {
	u := s.createUser("jdoe", models.RoleFreelancer)

	resp, out := s.sendJSON(http.MethodPatch, "/api/profile", map[string]string{
		"first_name": "Jane",
		"skills":     "Go, Redis",
	}, s.sessionFor(u))
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(true, out["success"], out)

	resp, out = s.sendJSON(http.MethodGet, "/api/users/JDOE", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	data := out["data"].(map[string]any)
	s.Equal("Jane", data["first_name"])
	s.ElementsMatch([]any{"Go", "Redis"}, data["skills"])
	s.NotContains(data, "email")

	resp, _ = s.sendJSON(http.MethodGet, "/api/users/ghost", nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *ServerTestSuite) TestAPIPhotoUpload() {
	u := s.createUser("jdoe", models.RoleFreelancer)

	var img bytes.Buffer
	s.Require().NoError(png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 20, 10))))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("photo", "me.png")
	s.Require().NoError(err)
	_, err = fw.Write(img.Bytes())
	s.Require().NoError(err)
	s.Require().NoError(mw.WriteField("flip_v", "1"))
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/profile/photo", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, raw := s.do(req, s.sessionFor(u))
	s.Equal(http.StatusOK, resp.StatusCode)

	var out map[string]any
	s.Require().NoError(json.Unmarshal([]byte(raw), &out))
	s.Equal(true, out["success"], raw)
	photo := out["data"].(map[string]any)["profile_photo"].(string)
	s.True(strings.HasPrefix(photo, "/uploads/profile_photos/"+u.ID.String()+"/"), photo)

	resp, _ = s.get(photo)
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *ServerTestSuite) TestAPIFreelancersMeta() {
	for _, name := range []string{"a1", "a2", "a3"} {
		s.createUser(name, models.RoleFreelancer)
	}

	resp, out := s.sendJSON(http.MethodGet, "/api/freelancers?limit=2", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Len(out["data"], 2)
	meta := out["meta"].(map[string]any)
	s.EqualValues(3, meta["total_items"])
	s.EqualValues(2, meta["total_pages"])
	s.EqualValues(2, meta["limit"])
}

func (s *ServerTestSuite) TestFeedRequiresUpgrade() {
	resp, _ := s.get("/ws/freelancers")
	s.Equal(http.StatusUpgradeRequired, resp.StatusCode)
}

func (s *ServerTestSuite) TestGoogleStartAndBadState() {
	resp, _ := s.get("/api/auth/google/start?as=owner&next=/freelancers")
	s.Equal(http.StatusTemporaryRedirect, resp.StatusCode)
	s.Contains(resp.Header.Get("Location"), "accounts.google.com")
	s.NotNil(cookieNamed(resp, "oauth_state"))
	role := cookieNamed(resp, "oauth_role")
	s.Require().NotNil(role)
	s.Equal("owner", role.Value)

	resp, _ = s.get("/api/auth/google/callback?code=abc&state=wrong", &http.Cookie{Name: "oauth_state", Value: "right"})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestAllowedOrigins(t *testing.T) {
	assert.Equal(t, "http://localhost:3000", allowedOrigins(&config.Config{}))
	assert.Equal(t, "https://app.example.com, https://api.example.com",
		allowedOrigins(&config.Config{FrontendBaseURL: "https://app.example.com", AppBaseURL: "https://api.example.com"}))
	require.NotPanics(t, func() { _ = allowedOrigins(&config.Config{AppBaseURL: "x"}) })
}
