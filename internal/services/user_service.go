package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/taskboard-be/internal/auth"
	"github.com/isdelr/taskboard-be/internal/database"
	"github.com/isdelr/taskboard-be/internal/models"
	"github.com/rs/zerolog/log"
)

// PasswordHasher is the one-way hash capability used for credentials.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	CreateUser(ctx context.Context, email, password string) (models.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (models.User, error)
}

// UserService provides business logic for user management.
type UserService struct {
	db           *database.DB
	hasher       PasswordHasher
	eventService EventServiceProvider

	dummyOnce sync.Once
	dummyHash string
}

// NewUserService creates a new UserService.
func NewUserService(db *database.DB, hasher PasswordHasher, eventService EventServiceProvider) *UserService {
	return &UserService{db: db, hasher: hasher, eventService: eventService}
}

// GetUserByEmail retrieves a single user by their email, including the password hash.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	var createdAt int64
	row := s.db.QueryRowContext(ctx, s.db.Rebind("SELECT id, email, password_hash, created_at FROM users WHERE email = ?"), email)
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &createdAt); err != nil {
		return models.User{}, err
	}
	user.CreatedAt = database.FromMillis(createdAt)
	return user, nil
}

// CreateUser creates a new user, hashing their password.
func (s *UserService) CreateUser(ctx context.Context, email, password string) (models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return models.User{}, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	hashedPassword, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordRejected) {
			return models.User{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return models.User{}, err
	}

	user := models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}

	_, err = s.db.ExecContext(ctx,
		s.db.Rebind("INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)"),
		user.ID, user.Email, user.PasswordHash, database.ToMillis(user.CreatedAt),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}

	s.recordEvent(ctx, user.ID, "Account registered")

	// Return user without password hash
	user.PasswordHash = ""
	return user, nil
}

// AuthenticateUser verifies a user's credentials. Unknown emails and wrong
// passwords produce the same ErrInvalidCredentials.
func (s *UserService) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	user, err := s.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Burn a comparison so unknown emails cost the same as known ones.
			s.hasher.Compare(s.dummy(), password)
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if !s.hasher.Compare(user.PasswordHash, password) {
		return models.User{}, ErrInvalidCredentials
	}

	// Don't send the password hash to the client
	user.PasswordHash = ""
	return user, nil
}

func (s *UserService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			log.Warn().Err(err).Msg("Failed to prepare dummy password hash")
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func (s *UserService) recordEvent(ctx context.Context, userID, message string) {
	if s.eventService == nil {
		return
	}
	if err := s.eventService.CreateEvent(ctx, models.EventUserRegistered, "info", message, userID, nil); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to record registration event")
	}
}
