package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/rohits-web03/softvault/internal/apperr"
	"github.com/rohits-web03/softvault/internal/models"
)

type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

type NewUser struct {
	Username string
	Email    string
	Password string
	Role     models.Role
}

// Create hashes the password and inserts the account. Username and email
// must be unique.
func (s *UserStore) Create(ctx context.Context, in NewUser) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" {
		return nil, fmt.Errorf("username and password are required: %w", apperr.ErrValidation)
	}
	if in.Role == "" {
		in.Role = models.RoleUser
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("unknown role %q: %w", in.Role, apperr.ErrValidation)
	}

	db := s.db.WithContext(ctx)
	if _, err := s.ByUsername(ctx, in.Username); err == nil {
		return nil, fmt.Errorf("username is already taken: %w", apperr.ErrConflict)
	}
	if in.Email != "" {
		var count int64
		if err := db.Model(&models.User{}).Where("email = ?", in.Email).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, fmt.Errorf("user already exists with this email: %w", apperr.ErrConflict)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{Username: in.Username, Password: string(hash), Role: in.Role, IsActive: true}
	if in.Email != "" {
		email := in.Email
		u.Email = &email
	}
	if err := db.Create(u).Error; err != nil {
		if IsUniqueViolation(err) {
			return nil, fmt.Errorf("user already exists: %w", apperr.ErrConflict)
		}
		return nil, err
	}
	return u, nil
}

func (s *UserStore) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "user "+id.String())
	}
	return &u, nil
}

func (s *UserStore) ByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, notFound(err, "user "+username)
	}
	return &u, nil
}

func (s *UserStore) ByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, notFound(err, "user "+email)
	}
	return &u, nil
}

// Authenticate checks the credentials and stamps the login time. Unknown
// users, wrong passwords and disabled accounts all report ErrUnauthorized.
func (s *UserStore) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.ByUsername(ctx, username)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("invalid credentials: %w", apperr.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if u.Password == "" || bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return nil, fmt.Errorf("invalid credentials: %w", apperr.ErrUnauthorized)
	}
	if !u.IsActive {
		return nil, fmt.Errorf("account is disabled: %w", apperr.ErrUnauthorized)
	}
	if err := s.TouchLogin(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserStore) TouchLogin(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	u.LastLogin = &now
	return s.db.WithContext(ctx).Model(u).UpdateColumn("last_login", now).Error
}

// List returns the real accounts, the system identity excluded.
func (s *UserStore) List(ctx context.Context, skip, limit int) ([]models.User, int64, error) {
	skip, limit = page(skip, limit, 50, 500)
	q := s.db.WithContext(ctx).Model(&models.User{}).Where("id <> ?", models.SystemUserID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []models.User
	err := q.Order("created_at DESC").Offset(skip).Limit(limit).Find(&users).Error
	return users, total, err
}

type UserUpdate struct {
	Role     *models.Role `json:"role"`
	IsActive *bool        `json:"isActive"`
	Email    *string      `json:"email"`
	Password *string      `json:"password"`
}

// Update changes another user's account. Acting on oneself is refused for
// role and activation changes.
func (s *UserStore) Update(ctx context.Context, actorID, id uuid.UUID, upd UserUpdate) (*models.User, error) {
	if id == models.SystemUserID {
		return nil, fmt.Errorf("the system account cannot be modified: %w", apperr.ErrForbidden)
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if upd.Role != nil {
		if actorID == id {
			return nil, fmt.Errorf("cannot change your own role: %w", apperr.ErrValidation)
		}
		if !upd.Role.Valid() {
			return nil, fmt.Errorf("unknown role %q: %w", *upd.Role, apperr.ErrValidation)
		}
		changes["role"] = *upd.Role
	}
	if upd.IsActive != nil {
		if actorID == id {
			return nil, fmt.Errorf("cannot change your own activation: %w", apperr.ErrValidation)
		}
		changes["is_active"] = *upd.IsActive
	}
	if upd.Email != nil {
		if *upd.Email == "" {
			changes["email"] = nil
		} else {
			changes["email"] = *upd.Email
		}
	}
	if upd.Password != nil {
		if *upd.Password == "" {
			return nil, fmt.Errorf("password cannot be empty: %w", apperr.ErrValidation)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*upd.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		changes["password"] = string(hash)
	}
	if len(changes) == 0 {
		return u, nil
	}
	if err := s.db.WithContext(ctx).Model(u).Updates(changes).Error; err != nil {
		if IsUniqueViolation(err) {
			return nil, fmt.Errorf("email already in use: %w", apperr.ErrConflict)
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *UserStore) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	if actorID == id {
		return fmt.Errorf("cannot delete yourself: %w", apperr.ErrValidation)
	}
	if id == models.SystemUserID {
		return fmt.Errorf("the system account cannot be deleted: %w", apperr.ErrForbidden)
	}
	res := s.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// CreateExternal creates an account authenticated elsewhere. It has no
// password, so Authenticate never accepts it.
func (s *UserStore) CreateExternal(ctx context.Context, username, email string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || email == "" {
		return nil, fmt.Errorf("username and email are required: %w", apperr.ErrValidation)
	}
	if _, err := s.ByUsername(ctx, username); err == nil {
		username = username + "-" + uuid.NewString()[:8]
	}
	u := &models.User{Username: username, Email: &email, Role: models.RoleUser, IsActive: true}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if IsUniqueViolation(err) {
			return nil, fmt.Errorf("user already exists: %w", apperr.ErrConflict)
		}
		return nil, err
	}
	return u, nil
}
