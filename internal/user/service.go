package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/jmoiron/sqlx"

	"github.com/HanjuJo/Latteh/internal/apperr"
	"github.com/HanjuJo/Latteh/internal/user/entity"
	userrepo "github.com/HanjuJo/Latteh/internal/user/repo"
	"github.com/HanjuJo/Latteh/pkg/utilities"
)

// PasswordHasher defines minimal hashing interface (abstract so we can swap to argon2 later).
type PasswordHasher interface {
	Hash(pw string) (hash string, algo string, err error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", "", err
	}
	return string(h), fmt.Sprintf("bcrypt:%d", cost), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// ErrBadCredentials is returned for any failed login so callers cannot probe for accounts.
var ErrBadCredentials = fmt.Errorf("%w: invalid email or password", apperr.ErrUnauthorized)

const (
	minPasswordLen = 8
	maxNameLen     = 50
	maxNicknameLen = 30
	maxBioLen      = 500
)

// UserService orchestrates signup, authentication and profile reads.
type UserService struct {
	repo   *userrepo.UserRepo
	hasher PasswordHasher
	nowFn  func() time.Time
}

func NewUserService(db *sqlx.DB, r *userrepo.UserRepo, hasher PasswordHasher) *UserService {
	if r == nil {
		r = userrepo.NewUserRepo(db)
	}
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	return &UserService{repo: r, hasher: hasher, nowFn: time.Now}
}

// SignupInput carries the registration form.
type SignupInput struct {
	Email    string
	Password string
	Name     string
	Nickname string
	UserType string
	Bio      string
}

func (in *SignupInput) normalize() error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.Nickname = strings.TrimSpace(in.Nickname)
	if in.Email == "" {
		return apperr.Validation("email is required")
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return apperr.Validation("email is not a valid address")
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLen {
		return apperr.Validation("password must be at least %d characters", minPasswordLen)
	}
	if in.Name == "" {
		return apperr.Validation("name is required")
	}
	if utf8.RuneCountInString(in.Name) > maxNameLen {
		return apperr.Validation("name must be at most %d characters", maxNameLen)
	}
	if in.Nickname == "" {
		return apperr.Validation("nickname is required")
	}
	if utf8.RuneCountInString(in.Nickname) > maxNicknameLen {
		return apperr.Validation("nickname must be at most %d characters", maxNicknameLen)
	}
	if utf8.RuneCountInString(in.Bio) > maxBioLen {
		return apperr.Validation("bio must be at most %d characters", maxBioLen)
	}
	if in.UserType == "" {
		in.UserType = entity.DefaultType
	}
	if !entity.ValidType(in.UserType) {
		return apperr.Validation("unknown userType %q", in.UserType)
	}
	return nil
}

// SignupUser validates the form, hashes the password and creates the user.
func (s *UserService) SignupUser(ctx context.Context, in SignupInput) (*entity.User, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	taken, err := s.repo.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: email already registered", apperr.ErrConflict)
	}
	taken, err = s.repo.ExistsByNickname(ctx, in.Nickname)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: nickname already in use", apperr.ErrConflict)
	}

	hash, algo, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.nowFn().UTC()
	u := &entity.User{
		ID:           utilities.NewSnowflakeID(),
		Email:        in.Email,
		Name:         in.Name,
		Nickname:     in.Nickname,
		PasswordHash: hash,
		PasswordAlgo: algo,
		UserType:     in.UserType,
		Bio:          in.Bio,
		ProfileImage: entity.DefaultAvatar,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// AuthenticatePassword checks email + password and returns the user on success.
func (s *UserService) AuthenticatePassword(ctx context.Context, email, password string) (*entity.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrBadCredentials
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, ErrBadCredentials
		} // avoid user enumeration
		return nil, err
	}
	if !s.hasher.Verify(u.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	return u, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*entity.User, error) {
	return s.repo.GetByID(ctx, id)
}
