package users

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/freelancehub/internal/cache"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/config"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/models"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/realtime"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/services/media"
	"github.com/Windi-Fikriyansyah/freelancehub/internal/utils"
)

const (
	tagFreelancers = "freelancers"

	DefaultPageSize = 20
	MaxPageSize     = 100
)

// EventPublisher receives user lifecycle events for the realtime feed.
type EventPublisher interface {
	Publish(ctx context.Context, ev realtime.Event)
}

// Mailer sends the welcome email after signup.
type Mailer interface {
	SendWelcome(u *models.User) error
}

type Service struct {
	DB       *gorm.DB
	Cache    *cache.Store
	Photos   *media.PhotoStore
	Events   EventPublisher
	Mailer   Mailer
	Gravatar *config.GravatarConfig
}

func NewService(db *gorm.DB, c *cache.Store, photos *media.PhotoStore, events EventPublisher, mailer Mailer) *Service {
	return &Service{DB: db, Cache: c, Photos: photos, Events: events, Mailer: mailer}
}

type SignUpInput struct {
	Username        string `json:"username" form:"username" validate:"required,max=150,username"`
	Email           string `json:"email" form:"email" validate:"required,max=254,email"`
	Password        string `json:"password" form:"password" validate:"required,min=8,max=128"`
	PasswordConfirm string `json:"password_confirm" form:"password_confirm" validate:"required,eqfield=Password"`
}

// SignUp registers a new account with the given role.
func (s *Service) SignUp(ctx context.Context, in SignUpInput, role models.Role) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	errs := validateStruct(in)
	if in.Password != "" && isNumeric(in.Password) {
		errs.Add("password", "This password is entirely numeric.")
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	db := s.DB.WithContext(ctx)

	var count int64
	if err := db.Model(&models.User{}).Where("LOWER(username) = ?", strings.ToLower(in.Username)).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if count > 0 {
		errs.Add("username", "A user with that username already exists.")
	}
	if err := db.Model(&models.User{}).Where("email = ?", in.Email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		errs.Add("email", "A user with that email already exists.")
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := models.User{
		Username:     in.Username,
		Email:        in.Email,
		Password:     hash,
		IsFreelancer: role == models.RoleFreelancer,
		IsOwner:      role == models.RoleOwner,
		IsActive:     true,
	}
	if err := db.Create(&u).Error; err != nil {
		if field, dup := uniqueViolation(err); dup {
			return nil, invalid(field, fmt.Sprintf("A user with that %s already exists.", field))
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	log.Info("user signed up", "username", u.Username, "role", role)
	s.afterSignUp(ctx, &u)
	return &u, nil
}

func (s *Service) afterSignUp(ctx context.Context, u *models.User) {
	if u.IsFreelancer {
		s.Cache.Invalidate(ctx, tagFreelancers)
	}
	s.publish(ctx, realtime.EventSignedUp, u)

	if s.Mailer != nil {
		mailer := s.Mailer
		welcome := *u
		go func() {
			if err := mailer.SendWelcome(&welcome); err != nil {
				log.Warn("welcome email failed", "username", welcome.Username, "error", err)
			}
		}()
	}
}

func (s *Service) publish(ctx context.Context, typ string, u *models.User) {
	if s.Events == nil {
		return
	}
	s.Events.Publish(ctx, realtime.Event{Type: typ, Username: u.Username, Role: string(u.Role())})
}

// Authenticate checks a username (or email) and password pair.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	q := s.DB.WithContext(ctx)
	if strings.Contains(login, "@") {
		q = q.Where("email = ?", strings.ToLower(login))
	} else {
		q = q.Where("LOWER(username) = ?", strings.ToLower(login))
	}

	var u models.User
	if err := q.First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.CheckPassword(u.Password, password) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrInactive
	}
	return &u, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).Preload("Skills").First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// PhotoURL is the absolute URL of the user's photo, or their gravatar when
// no photo was uploaded.
func (s *Service) PhotoURL(u *models.User) string {
	if u.ProfilePhoto != "" && s.Photos != nil {
		return s.Photos.URL(u.ProfilePhoto)
	}
	return media.GravatarURL(u.Email, s.Gravatar)
}

func detailKey(username string) string {
	return "user:" + strings.ToLower(username)
}

// GetByUsername loads a profile by its public lookup key.
func (s *Service) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrNotFound
	}

	var u models.User
	if s.Cache.GetJSON(ctx, detailKey(username), &u) {
		return &u, nil
	}

	err := s.DB.WithContext(ctx).
		Preload("Skills").
		Where("LOWER(username) = ?", strings.ToLower(username)).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.Cache.SetJSON(ctx, detailKey(username), &u)
	return &u, nil
}

// PhotoUpload is a new profile photo as received from a multipart form.
type PhotoUpload struct {
	Filename string
	Size     int64
	Reader   io.Reader
	Flip     models.PhotoTransform
}

// ProfileInput carries the editable subset of a user. Nil fields are left untouched.
type ProfileInput struct {
	FirstName  *string      `json:"first_name" form:"first_name" validate:"omitempty,max=150"`
	LastName   *string      `json:"last_name" form:"last_name" validate:"omitempty,max=150"`
	Profile    *string      `json:"profile" form:"profile" validate:"omitempty,max=5000"`
	Skills     *string      `json:"skills" form:"skills" validate:"omitempty,max=1000"`
	ClearPhoto bool         `json:"clear_photo" form:"clear_photo"`
	Photo      *PhotoUpload `json:"-" form:"-" validate:"-"`
}

// UpdateProfile writes the mutable profile fields of userID and replaces its skills.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, in ProfileInput) (*models.User, error) {
	if errs := validateStruct(in); len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	var newPhoto string
	if in.Photo != nil {
		if err := media.ValidateUpload(in.Photo.Filename, in.Photo.Size); err != nil {
			return nil, invalid("profile_photo", err.Error())
		}
		path, err := s.Photos.Save(userID, in.Photo.Reader, in.Photo.Flip)
		if err != nil {
			if errors.Is(err, media.ErrPhotoUnreadable) {
				return nil, invalid("profile_photo", "Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
			}
			return nil, err
		}
		newPhoto = path
	}

	var (
		u        models.User
		oldPhoto string
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&u, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		oldPhoto = u.ProfilePhoto

		updates := map[string]interface{}{}
		if in.FirstName != nil {
			updates["first_name"] = strings.TrimSpace(*in.FirstName)
		}
		if in.LastName != nil {
			updates["last_name"] = strings.TrimSpace(*in.LastName)
		}
		if in.Profile != nil {
			updates["profile"] = strings.TrimSpace(*in.Profile)
		}
		switch {
		case newPhoto != "":
			t, _ := json.Marshal(in.Photo.Flip)
			updates["profile_photo"] = newPhoto
			updates["photo_transform"] = string(t)
		case in.ClearPhoto:
			updates["profile_photo"] = ""
			updates["photo_transform"] = nil
		}

		if len(updates) > 0 {
			if err := tx.Model(&u).Updates(updates).Error; err != nil {
				return err
			}
		}

		if in.Skills != nil {
			skills, err := upsertSkills(tx, models.ParseSkills(*in.Skills))
			if err != nil {
				return err
			}
			if err := tx.Model(&u).Association("Skills").Replace(skills); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if newPhoto != "" {
			s.Photos.Remove(newPhoto)
		}
		return nil, err
	}

	if oldPhoto != "" && (newPhoto != "" || in.ClearPhoto) {
		s.Photos.Remove(oldPhoto)
	}

	s.Cache.Delete(ctx, detailKey(u.Username))
	if u.IsFreelancer {
		s.Cache.Invalidate(ctx, tagFreelancers)
	}

	updated, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	log.Info("profile updated", "username", updated.Username)
	s.publish(ctx, realtime.EventProfileUpdated, updated)
	return updated, nil
}

func upsertSkills(tx *gorm.DB, parsed []models.Skill) ([]models.Skill, error) {
	out := make([]models.Skill, 0, len(parsed))
	for _, p := range parsed {
		sk := models.Skill{}
		if err := tx.Where(models.Skill{Slug: p.Slug}).Attrs(models.Skill{Name: p.Name}).FirstOrCreate(&sk).Error; err != nil {
			return nil, fmt.Errorf("save skill %q: %w", p.Slug, err)
		}
		out = append(out, sk)
	}
	return out, nil
}

type ListParams struct {
	Page  int
	Limit int
	Skill string // skill slug
	Query string // matches username, first or last name
}

func (p *ListParams) normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	p.Skill = slug.Make(p.Skill)
	p.Query = strings.ToLower(strings.TrimSpace(p.Query))
}

type FreelancerPage struct {
	Items      []models.User `json:"items"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	Total      int64         `json:"total_items"`
	TotalPages int           `json:"total_pages"`
}

func (p FreelancerPage) HasPrev() bool { return p.Page > 1 }
func (p FreelancerPage) HasNext() bool { return p.Page < p.TotalPages }
func (p FreelancerPage) PrevPage() int { return p.Page - 1 }
func (p FreelancerPage) NextPage() int { return p.Page + 1 }

// likeEscaper makes search input match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListFreelancers returns active users flagged as freelancers, newest first.
func (s *Service) ListFreelancers(ctx context.Context, params ListParams) (*FreelancerPage, error) {
	params.normalize()

	key := fmt.Sprintf("freelancers:%d:%d:%s:%s", params.Page, params.Limit, params.Skill, params.Query)
	var cached FreelancerPage
	if s.Cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	filter := func(db *gorm.DB) *gorm.DB {
		db = db.Where("is_freelancer = ? AND is_active = ?", true, true)
		if params.Skill != "" {
			db = db.Where("id IN (?)", s.DB.
				Table("user_skills").
				Select("user_skills.user_id").
				Joins("JOIN skills ON skills.id = user_skills.skill_id").
				Where("skills.slug = ?", params.Skill))
		}
		if params.Query != "" {
			like := "%" + likeEscaper.Replace(params.Query) + "%"
			db = db.Where(`LOWER(username) LIKE ? ESCAPE '\' OR LOWER(first_name) LIKE ? ESCAPE '\' OR LOWER(last_name) LIKE ? ESCAPE '\'`, like, like, like)
		}
		return db
	}

	db := s.DB.WithContext(ctx)

	var total int64
	if err := db.Model(&models.User{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count freelancers: %w", err)
	}

	var items []models.User
	if err := db.Model(&models.User{}).
		Scopes(filter).
		Preload("Skills").
		Order("date_joined DESC").
		Order("id").
		Limit(params.Limit).
		Offset((params.Page - 1) * params.Limit).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list freelancers: %w", err)
	}

	page := &FreelancerPage{
		Items:      items,
		Page:       params.Page,
		Limit:      params.Limit,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(params.Limit))),
	}
	s.Cache.SetJSON(ctx, key, page, tagFreelancers)
	return page, nil
}

// FindOrCreateOAuthUser returns the account owning email, creating one with
// the given role when none exists.
func (s *Service) FindOrCreateOAuthUser(ctx context.Context, email, name string, role models.Role) (*models.User, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, false, invalid("email", "This field is required.")
	}

	db := s.DB.WithContext(ctx)

	var u models.User
	err := db.Where("email = ?", email).First(&u).Error
	if err == nil {
		return &u, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	username, err := s.uniqueUsername(ctx, name, email)
	if err != nil {
		return nil, false, err
	}

	hash, err := utils.HashPassword(randomSecret(24))
	if err != nil {
		return nil, false, err
	}

	first, last, _ := strings.Cut(strings.TrimSpace(name), " ")
	u = models.User{
		Username:     username,
		Email:        email,
		Password:     hash,
		FirstName:    first,
		LastName:     strings.TrimSpace(last),
		IsFreelancer: role == models.RoleFreelancer,
		IsOwner:      role == models.RoleOwner,
		IsActive:     true,
	}
	if err := db.Create(&u).Error; err != nil {
		return nil, false, fmt.Errorf("create oauth user: %w", err)
	}

	log.Info("user signed up via google", "username", u.Username, "role", role)
	s.afterSignUp(ctx, &u)
	return &u, true, nil
}

func (s *Service) uniqueUsername(ctx context.Context, name, email string) (string, error) {
	local, _, _ := strings.Cut(email, "@")
	base := slug.Make(name)
	if base == "" {
		base = slug.Make(local)
	}
	if base == "" {
		base = "user"
	}
	if len(base) > 140 {
		base = base[:140]
	}

	candidate := base
	for i := 1; i <= 100; i++ {
		var count int64
		if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("LOWER(username) = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i+1)
	}
	return base + "-" + uuid.NewString()[:8], nil
}

func randomSecret(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
