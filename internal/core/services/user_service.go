package services

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/pkg/pagination"
	"libraryhub/internal/pkg/password"
	"libraryhub/internal/pkg/sanitize"

	"gorm.io/gorm"
)

const maxUsernameLength = 150

// UserService handles user management business logic
type UserService struct {
	store  repositories.Store
	clock  Clock
	logger *slog.Logger
}

// NewUserService creates a new user service
func NewUserService(store repositories.Store, clock Clock, logger *slog.Logger) *UserService {
	if clock == nil {
		clock = time.Now
	}
	return &UserService{store: store, clock: clock, logger: logger}
}

// CreateUserInput represents create user input (admin or registration)
type CreateUserInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// UpdateUserInput represents a partial user update. Role and IsActive are
// admin-only; changing one's own password requires CurrentPassword.
type UpdateUserInput struct {
	Username        *string `json:"username"`
	Email           *string `json:"email"`
	Password        *string `json:"password"`
	CurrentPassword *string `json:"current_password"`
	Role            *string `json:"role"`
	IsActive        *bool   `json:"is_active"`
}

// ListUsers lists users with pagination
func (s *UserService) ListUsers(ctx context.Context, search string, params *pagination.Params) (*pagination.Response, error) {
	users, total, err := s.store.Users().List(ctx, search, params.Offset, params.Limit)
	if err != nil {
		return nil, err
	}

	responses := make([]*models.UserResponse, len(users))
	for i, user := range users {
		responses[i] = user.ToResponse()
	}
	return pagination.NewResponse(responses, params, total), nil
}

// GetUser gets a user the actor is allowed to see: themselves, or anyone for staff
func (s *UserService) GetUser(ctx context.Context, id uint, actor domain.Actor) (*models.User, error) {
	if !actor.IsSelf(id) && !actor.Role.Can(domain.CapViewUsers) {
		return nil, domain.ErrPermissionDenied
	}
	return s.getUser(ctx, s.store.Users(), id)
}

// GetByID gets a user by ID without a permission check (session loading)
func (s *UserService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getUser(ctx, s.store.Users(), id)
}

func (s *UserService) getUser(ctx context.Context, repo repositories.UserRepository, id uint) (*models.User, error) {
	user, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// CreateUser creates an account with any role (admin)
func (s *UserService) CreateUser(ctx context.Context, input *CreateUserInput) (*models.User, error) {
	user, err := createUser(ctx, s.store.Users(), s.clock, input)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user created", slog.String("username", user.Username), slog.String("role", user.Role.String()))
	return user, nil
}

// UpdateUser applies a partial update on behalf of actor
func (s *UserService) UpdateUser(ctx context.Context, id uint, actor domain.Actor, input *UpdateUserInput) (*models.User, error) {
	isAdmin := actor.Role.Can(domain.CapManageUsers)
	if !actor.IsSelf(id) && !isAdmin {
		return nil, domain.ErrPermissionDenied
	}
	if (input.Role != nil || input.IsActive != nil) && !isAdmin {
		return nil, domain.ErrPermissionDenied
	}

	var updated *models.User
	err := s.store.Atomic(ctx, func(tx repositories.Store) error {
		user, err := s.getUser(ctx, tx.Users(), id)
		if err != nil {
			return err
		}

		if input.Role != nil || input.IsActive != nil {
			if err := applyAdminFields(user, actor, input); err != nil {
				return err
			}
		}

		if input.Username != nil {
			username, err := cleanUsername(*input.Username)
			if err != nil {
				return err
			}
			exists, err := tx.Users().ExistsByUsername(ctx, username, id)
			if err != nil {
				return err
			}
			if exists {
				return domain.ErrUsernameTaken
			}
			user.Username = username
		}

		if input.Email != nil {
			email, err := cleanEmail(*input.Email)
			if err != nil {
				return err
			}
			exists, err := tx.Users().ExistsByEmail(ctx, email, id)
			if err != nil {
				return err
			}
			if exists {
				return domain.ErrEmailTaken
			}
			user.Email = email
		}

		if input.Password != nil {
			// Verify old password when changing one's own
			if actor.IsSelf(id) && (input.CurrentPassword == nil || !password.Verify(*input.CurrentPassword, user.Password)) {
				return domain.ErrWrongPassword
			}
			if !password.ValidatePassword(*input.Password) {
				return domain.ErrWeakPassword
			}
			hashed, err := password.Hash(*input.Password)
			if err != nil {
				return err
			}
			user.Password = hashed
		}

		if err := tx.Users().Update(ctx, user); err != nil {
			return translateUserConflict(err)
		}

		// A password change or deactivation ends every API session
		if input.Password != nil || !user.IsActive {
			if err := tx.RefreshTokens().RevokeAllByUserID(ctx, id); err != nil {
				return err
			}
		}

		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// applyAdminFields sets role and active status, refusing changes to oneself
func applyAdminFields(user *models.User, actor domain.Actor, input *UpdateUserInput) error {
	if actor.IsSelf(user.ID) {
		if input.Role != nil && !strings.EqualFold(*input.Role, string(user.Role)) {
			return domain.ErrCannotChangeOwnRole
		}
		if input.IsActive != nil && !*input.IsActive {
			return domain.ErrCannotChangeOwnRole
		}
	}
	if input.Role != nil {
		role, err := domain.ParseRole(*input.Role)
		if err != nil {
			return err
		}
		user.Role = role
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}
	return nil
}

// DeleteUser soft deletes a user with no open loans (admin, not self)
func (s *UserService) DeleteUser(ctx context.Context, id uint, actor domain.Actor) error {
	if !actor.Role.Can(domain.CapManageUsers) {
		return domain.ErrPermissionDenied
	}
	// Prevent admin from deleting self
	if actor.IsSelf(id) {
		return domain.ErrCannotDeleteSelf
	}

	return s.store.Atomic(ctx, func(tx repositories.Store) error {
		if _, err := s.getUser(ctx, tx.Users(), id); err != nil {
			return err
		}

		open, err := tx.Transactions().CountOpen(ctx, repositories.TransactionFilter{UserID: id})
		if err != nil {
			return err
		}
		if open > 0 {
			return domain.ErrUserHasOpenLoans
		}

		if err := tx.RefreshTokens().RevokeAllByUserID(ctx, id); err != nil {
			return err
		}
		return tx.Users().Delete(ctx, id)
	})
}

// createUser validates and stores a new account
func createUser(ctx context.Context, repo repositories.UserRepository, clock Clock, input *CreateUserInput) (*models.User, error) {
	username, err := cleanUsername(input.Username)
	if err != nil {
		return nil, err
	}
	email, err := cleanEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if !password.ValidatePassword(input.Password) {
		return nil, domain.ErrWeakPassword
	}

	role := domain.RoleMember
	if input.Role != "" {
		if role, err = domain.ParseRole(input.Role); err != nil {
			return nil, err
		}
	}

	// Check if username or email already exists
	exists, err := repo.ExistsByUsername(ctx, username, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrUsernameTaken
	}
	exists, err = repo.ExistsByEmail(ctx, email, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrEmailTaken
	}

	hashedPassword, err := password.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:         username,
		Email:            email,
		Password:         hashedPassword,
		Role:             role,
		IsActive:         true,
		DateOfMembership: domain.Today(clock()),
	}
	if err := repo.Create(ctx, user); err != nil {
		return nil, translateUserConflict(err)
	}
	return user, nil
}

// translateUserConflict maps a unique violation that slipped past the
// existence checks (a concurrent registration) to a domain error
func translateUserConflict(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrUsernameTaken
	}
	return err
}

func cleanUsername(raw string) (string, error) {
	username := sanitize.Text(raw)
	if username == "" {
		return "", domain.Invalid("Username is required")
	}
	if len(username) > maxUsernameLength {
		return "", domain.Invalid("Username must be at most 150 characters")
	}
	return username, nil
}

func cleanEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Address != strings.TrimSpace(raw) {
		return "", domain.Invalid("Enter a valid email address")
	}
	return strings.ToLower(addr.Address), nil
}
