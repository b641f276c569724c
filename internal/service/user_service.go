package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
)

// textCompleter is the generative text collaborator.
type textCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const (
	accessCodeLength   = 6
	maxLocalCodeTries  = 50
	codeSuggestionText = "Suggest one random %d-digit numeric access code. Reply with the digits only."
)

// UserServiceConfig tunes credential hashing and code generation.
type UserServiceConfig struct {
	HashCost       int
	AICodeAttempts int
}

// UserInput is the create/update payload for users. Code may be empty on update.
type UserInput struct {
	Name              string              `json:"name" validate:"required,max=200"`
	Code              string              `json:"code" validate:"omitempty,numeric,min=4,max=12"`
	Permissions       []models.Permission `json:"permissions" validate:"required,min=1"`
	ManagedTeacherIDs []string            `json:"managedTeacherIds"`
	SchoolName        string              `json:"schoolName"`
}

// UserView is a user without its credential hash.
type UserView struct {
	ID                string              `json:"id"`
	Name              string              `json:"name"`
	Permissions       []models.Permission `json:"permissions"`
	ManagedTeacherIDs []string            `json:"managedTeacherIds"`
	SchoolName        string              `json:"schoolName,omitempty"`
	Undeletable       bool                `json:"undeletable"`
}

// NewUserView strips the credential hash from u.
func NewUserView(u models.User) UserView {
	managed := u.ManagedTeacherIDs
	if managed == nil {
		managed = []string{}
	}
	return UserView{
		ID:                u.ID,
		Name:              u.Name,
		Permissions:       u.Permissions,
		ManagedTeacherIDs: managed,
		SchoolName:        u.SchoolName,
		Undeletable:       u.Undeletable(),
	}
}

// UserService manages accounts and their access codes.
type UserService struct {
	state     stateStore
	scope     visibilityProvider
	ai        textCompleter
	validator *validator.Validate
	logger    *zap.Logger
	config    UserServiceConfig
}

// NewUserService creates an instance of UserService. ai may be nil.
func NewUserService(state stateStore, scope visibilityProvider, ai textCompleter, validate *validator.Validate, logger *zap.Logger, config UserServiceConfig) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.HashCost == 0 {
		config.HashCost = bcrypt.DefaultCost
	}
	if config.AICodeAttempts <= 0 {
		config.AICodeAttempts = 3
	}
	return &UserService{state: state, scope: scope, ai: ai, validator: validate, logger: logger, config: config}
}

// List returns the users visible in the selected school.
func (s *UserService) List(ctx context.Context, sess *models.Session) ([]UserView, error) {
	if err := requirePermission(sess, models.PermManageUsers); err != nil {
		return nil, err
	}
	c, rev := s.state.Snapshot()
	users := s.scope.Visible(c, rev, sess).Users
	out := make([]UserView, 0, len(users))
	for _, u := range users {
		out = append(out, NewUserView(u))
	}
	return out, nil
}

// Create adds a user. The code is required and must not match any existing user's code.
func (s *UserService) Create(ctx context.Context, sess *models.Session, req UserInput) (*UserView, error) {
	if err := requirePermission(sess, models.PermManageUsers); err != nil {
		return nil, err
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}
	if req.Code == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "access code is required")
	}
	if err := guardWildcardGrant(sess, req.Permissions); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Code), s.config.HashCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash access code")
	}
	user := models.User{
		ID:                newID(),
		Name:              strings.TrimSpace(req.Name),
		CodeHash:          string(hash),
		Permissions:       req.Permissions,
		ManagedTeacherIDs: trimAll(req.ManagedTeacherIDs),
		SchoolName:        strings.TrimSpace(req.SchoolName),
	}
	err = s.state.Mutate(ctx, func(c *models.Collections) error {
		if codeInUse(c.Users, req.Code, "") {
			return appErrors.Clone(appErrors.ErrConflict, "access code already in use")
		}
		c.Users = append(c.Users, user)
		return nil
	})
	if err != nil {
		return nil, persistError(err, "failed to create user")
	}
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("actor_id", sess.UserID()))
	view := NewUserView(user)
	return &view, nil
}

// Update modifies a visible user. An empty code keeps the current one. The
// bootstrap administrator always keeps the wildcard.
func (s *UserService) Update(ctx context.Context, sess *models.Session, id string, req UserInput) (*UserView, error) {
	if err := requirePermission(sess, models.PermManageUsers); err != nil {
		return nil, err
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}
	if !s.isVisible(sess, id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	if err := guardWildcardGrant(sess, req.Permissions); err != nil {
		return nil, err
	}
	var hash []byte
	if req.Code != "" {
		var err error
		if hash, err = bcrypt.GenerateFromPassword([]byte(req.Code), s.config.HashCost); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash access code")
		}
	}
	var updated models.User
	err := s.state.Mutate(ctx, func(c *models.Collections) error {
		idx := findIndex(c.Users, func(u models.User) bool { return u.ID == id })
		if idx < 0 {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		u := c.Users[idx]
		if err := guardWildcardTarget(sess, &u); err != nil {
			return err
		}
		if req.Code != "" {
			if codeInUse(c.Users, req.Code, id) {
				return appErrors.Clone(appErrors.ErrConflict, "access code already in use")
			}
			u.CodeHash = string(hash)
		}
		u.Name = strings.TrimSpace(req.Name)
		u.Permissions = req.Permissions
		if u.ID == models.AdminUserID && !u.IsWildcard() {
			u.Permissions = append([]models.Permission{models.PermissionAll}, u.Permissions...)
		}
		u.ManagedTeacherIDs = trimAll(req.ManagedTeacherIDs)
		u.SchoolName = strings.TrimSpace(req.SchoolName)
		c.Users[idx] = u
		updated = u
		return nil
	})
	if err != nil {
		return nil, persistError(err, "failed to update user")
	}
	view := NewUserView(updated)
	return &view, nil
}

// Delete removes a visible user. The bootstrap administrator cannot be deleted.
func (s *UserService) Delete(ctx context.Context, sess *models.Session, id string) error {
	if err := requirePermission(sess, models.PermManageUsers); err != nil {
		return err
	}
	if !s.isVisible(sess, id) {
		return appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	err := s.state.Mutate(ctx, func(c *models.Collections) error {
		idx := findIndex(c.Users, func(u models.User) bool { return u.ID == id })
		if idx < 0 {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		if err := guardWildcardTarget(sess, &c.Users[idx]); err != nil {
			return err
		}
		if c.Users[idx].Undeletable() {
			return appErrors.Clone(appErrors.ErrUndeletable, "the administrator account cannot be deleted")
		}
		DeleteCascade(c, models.KeyUsers, id)
		return nil
	})
	if err != nil {
		return persistError(err, "failed to delete user")
	}
	s.logger.Info("user deleted", zap.String("user_id", id), zap.String("actor_id", sess.UserID()))
	return nil
}

// guardWildcardGrant stops anyone but a wildcard user from handing out the wildcard.
func guardWildcardGrant(sess *models.Session, perms []models.Permission) error {
	if sess.User.IsWildcard() {
		return nil
	}
	for _, p := range perms {
		if p == models.PermissionAll {
			return appErrors.Clone(appErrors.ErrForbidden, "only an administrator can grant full access")
		}
	}
	return nil
}

// guardWildcardTarget stops anyone but a wildcard user from changing a wildcard account.
func guardWildcardTarget(sess *models.Session, target *models.User) error {
	if target.IsWildcard() && !sess.User.IsWildcard() {
		return appErrors.Clone(appErrors.ErrForbidden, "only an administrator can change an administrator account")
	}
	return nil
}

// Authenticate returns the user whose code matches. Hashes are compared one by one.
func (s *UserService) Authenticate(ctx context.Context, code string) (*models.User, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid access code")
	}
	c, _ := s.state.Snapshot()
	for i := range c.Users {
		if c.Users[i].CodeHash == "" {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(c.Users[i].CodeHash), []byte(code)) == nil {
			u := c.Users[i]
			return &u, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid access code")
}

// GenerateCode suggests an unused access code. The AI collaborator is asked
// first; an unusable answer falls back to a locally generated random code.
func (s *UserService) GenerateCode(ctx context.Context, sess *models.Session) (string, error) {
	if err := requirePermission(sess, models.PermManageUsers); err != nil {
		return "", err
	}
	return s.generateCode(ctx)
}

func (s *UserService) generateCode(ctx context.Context) (string, error) {
	c, _ := s.state.Snapshot()
	if s.ai != nil {
		for attempt := 0; attempt < s.config.AICodeAttempts; attempt++ {
			reply, err := s.ai.Complete(ctx, fmt.Sprintf(codeSuggestionText, accessCodeLength))
			if err != nil {
				s.logger.Warn("code suggestion failed, using local generator", zap.Error(err))
				break
			}
			code := digitsOnly(reply)
			if len(code) == accessCodeLength && !codeInUse(c.Users, code, "") {
				return code, nil
			}
		}
	}
	for attempt := 0; attempt < maxLocalCodeTries; attempt++ {
		code, err := randomDigits(accessCodeLength)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate access code")
		}
		if !codeInUse(c.Users, code, "") {
			return code, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrConflict, "could not find an unused access code")
}

// EnsureAdmin creates the bootstrap administrator when absent. It returns the
// plain code only when one had to be generated.
func (s *UserService) EnsureAdmin(ctx context.Context, bootstrapCode, name string) (string, error) {
	c, _ := s.state.Snapshot()
	if findIndex(c.Users, func(u models.User) bool { return u.ID == models.AdminUserID }) >= 0 {
		return "", nil
	}
	code := strings.TrimSpace(bootstrapCode)
	generated := false
	if code == "" {
		var err error
		if code, err = s.generateCode(ctx); err != nil {
			return "", err
		}
		generated = true
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.config.HashCost)
	if err != nil {
		return "", fmt.Errorf("hash admin code: %w", err)
	}
	if name == "" {
		name = "Administrator"
	}
	err = s.state.Mutate(ctx, func(c *models.Collections) error {
		if findIndex(c.Users, func(u models.User) bool { return u.ID == models.AdminUserID }) >= 0 {
			generated = false
			return nil
		}
		c.Users = append(c.Users, models.User{
			ID:          models.AdminUserID,
			Name:        name,
			CodeHash:    string(hash),
			Permissions: []models.Permission{models.PermissionAll},
		})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("create admin: %w", err)
	}
	if !generated {
		return "", nil
	}
	return code, nil
}

func (s *UserService) validate(req UserInput) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid user payload")
	}
	for _, p := range req.Permissions {
		if !models.IsKnownPermission(p) {
			return appErrors.Clone(appErrors.ErrValidation, "unknown permission "+string(p))
		}
	}
	return nil
}

func (s *UserService) isVisible(sess *models.Session, id string) bool {
	c, rev := s.state.Snapshot()
	return findIndex(s.scope.Visible(c, rev, sess).Users, func(u models.User) bool { return u.ID == id }) >= 0
}

func codeInUse(users []models.User, code, exceptID string) bool {
	for _, u := range users {
		if u.ID == exceptID || u.CodeHash == "" {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(u.CodeHash), []byte(code)) == nil {
			return true
		}
	}
	return false
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func randomDigits(n int) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}
