package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
)

type authenticator interface {
	Authenticate(ctx context.Context, code string) (*models.User, error)
}

// AuthConfig defines configuration for session tokens.
type AuthConfig struct {
	Secret string
	Expiry time.Duration
	Issuer string
}

// LoginRequest opens a session for one school and academic year.
type LoginRequest struct {
	Code         string `json:"code" validate:"required"`
	School       string `json:"school" validate:"required"`
	AcademicYear string `json:"academicYear" validate:"required"`
}

// SwitchRequest moves an existing session to another school or year.
type SwitchRequest struct {
	School       string `json:"school" validate:"required"`
	AcademicYear string `json:"academicYear" validate:"required"`
}

// LoginResponse carries the issued session token.
type LoginResponse struct {
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expiresAt"`
	User         UserView  `json:"user"`
	School       string    `json:"school"`
	AcademicYear string    `json:"academicYear"`
	Schools      []string  `json:"schools"`
}

// AuthService issues and resolves session tokens.
type AuthService struct {
	state     stateStore
	users     authenticator
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(state stateStore, users authenticator, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.Expiry <= 0 {
		config.Expiry = 12 * time.Hour
	}
	return &AuthService{state: state, users: users, validator: validate, logger: logger, config: config, now: time.Now}
}

// Login checks the access code and issues a token bound to the chosen school and year.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid login payload")
	}
	user, err := s.users.Authenticate(ctx, req.Code)
	if err != nil {
		s.logger.Info("login rejected", zap.String("school", req.School))
		return nil, err
	}
	resp, err := s.issue(user, req.School, req.AcademicYear)
	if err != nil {
		return nil, err
	}
	s.logger.Info("login", zap.String("user_id", user.ID), zap.String("school", req.School))
	return resp, nil
}

// Switch re-issues the token of sess for another school or academic year.
func (s *AuthService) Switch(ctx context.Context, sess *models.Session, req SwitchRequest) (*LoginResponse, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid session payload")
	}
	return s.issue(sess.User, req.School, req.AcademicYear)
}

func (s *AuthService) issue(user *models.User, school, academicYear string) (*LoginResponse, error) {
	c, _ := s.state.Snapshot()
	if findIndex(c.Schools, func(name string) bool { return name == school }) < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown school")
	}
	if user.SchoolName != "" && user.SchoolName != school {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "user is not assigned to this school")
	}

	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.config.Expiry)
	claims := &models.SessionClaims{
		UserID:       user.ID,
		School:       school,
		AcademicYear: academicYear,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session token")
	}
	return &LoginResponse{
		Token:        signed,
		ExpiresAt:    expiresAt,
		User:         NewUserView(*user),
		School:       school,
		AcademicYear: academicYear,
		Schools:      append([]string(nil), c.Schools...),
	}, nil
}

// ValidateToken parses and validates a session token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.SessionClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// SessionFor resolves claims against the current users and schools. A user
// deleted or reassigned since login no longer has a session.
func (s *AuthService) SessionFor(claims *models.SessionClaims) (*models.Session, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing claims")
	}
	c, _ := s.state.Snapshot()
	idx := findIndex(c.Users, func(u models.User) bool { return u.ID == claims.UserID })
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user no longer exists")
	}
	user := c.Users[idx]
	if user.SchoolName != "" && user.SchoolName != claims.School {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user is no longer assigned to this school")
	}
	if findIndex(c.Schools, func(name string) bool { return name == claims.School }) < 0 {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "school no longer exists")
	}
	return &models.Session{
		User:           &user,
		SelectedSchool: claims.School,
		AcademicYear:   claims.AcademicYear,
		Schools:        append([]string(nil), c.Schools...),
	}, nil
}
