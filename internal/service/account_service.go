package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"anime-watchlist/internal/domain"
	"anime-watchlist/internal/email"
	"anime-watchlist/internal/repository"
	"anime-watchlist/internal/storage"
)

const (
	minPasswordLength = 6
	minBcryptCost     = 10
)

var emailPattern = regexp.MustCompile(`^\w+([\.-]?\w+)*@\w+([\.-]?\w+)*(\.\w{2,3})+$`)

// AccountService coordina el ciclo de vida de la cuenta: alta, verificación,
// login y recuperación de contraseña.
type AccountService struct {
	logger      *zap.Logger
	users       repository.UserRepository
	tokens      *JWTService
	emailSender email.Sender
	uploader    storage.Uploader
	frontendURL string
	bcryptCost  int
	now         func() time.Time
}

type AccountOptions struct {
	FrontendURL string
	BcryptCost  int
}

func NewAccountService(
	logger *zap.Logger,
	users repository.UserRepository,
	tokens *JWTService,
	emailSender email.Sender,
	uploader storage.Uploader,
	opts AccountOptions,
) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if emailSender == nil {
		emailSender = email.NewDisabledSender("email sender not configured")
	}
	if uploader == nil {
		uploader = storage.NewDisabledUploader("image storage not configured")
	}
	cost := opts.BcryptCost
	if cost < minBcryptCost {
		cost = minBcryptCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &AccountService{
		logger:      logger,
		users:       users,
		tokens:      tokens,
		emailSender: emailSender,
		uploader:    uploader,
		frontendURL: strings.TrimRight(opts.FrontendURL, "/"),
		bcryptCost:  cost,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Register crea un usuario sin verificar y envía el enlace de verificación.
func (s *AccountService) Register(ctx context.Context, name, emailAddr, password string) error {
	name = strings.TrimSpace(name)
	emailAddr = strings.TrimSpace(emailAddr)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if !emailPattern.MatchString(emailAddr) {
		return fmt.Errorf("%w: please provide a valid email address", ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	if _, err := s.users.GetByEmail(ctx, emailAddr); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	token, err := generateToken()
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	user := domain.User{
		ID:                uuid.NewString(),
		Name:              name,
		Email:             emailAddr,
		PasswordHash:      string(hash),
		VerificationToken: &token,
		RegisteredAt:      s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}

	link := s.link("verify-account", emailAddr, token)
	if err := s.emailSender.SendAccountVerification(ctx, emailAddr, name, link); err != nil {
		s.logger.Warn("send verification email failed", zap.Error(err), zap.String("user_id", user.ID))
	}
	return nil
}

func (s *AccountService) VerifyAccount(ctx context.Context, emailAddr, token string) error {
	user, err := s.userByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}
	if !tokensEqual(user.VerificationToken, strings.TrimSpace(token)) {
		return ErrInvalidToken
	}
	if err := s.users.MarkVerified(ctx, user.ID, *user.VerificationToken); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}

// Login devuelve ErrInvalidCredentials tanto si el usuario no existe como si la
// contraseña no coincide.
func (s *AccountService) Login(ctx context.Context, emailAddr, password string) (Session, error) {
	emailAddr = strings.TrimSpace(emailAddr)
	if emailAddr == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	if !user.IsVerified {
		return Session{}, ErrNotVerified
	}
	session, err := s.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("issue session: %w", err)
	}
	return session, nil
}

func (s *AccountService) ForgotPassword(ctx context.Context, emailAddr string) error {
	user, err := s.userByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}
	token, err := generateToken()
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	if err := s.users.SetResetToken(ctx, user.ID, token); err != nil {
		return s.mapUserErr(err, "set reset token")
	}

	link := s.link("reset-password", user.Email, token)
	if err := s.emailSender.SendPasswordReset(ctx, user.Email, user.Name, link); err != nil {
		s.logger.Warn("send password reset email failed", zap.Error(err), zap.String("user_id", user.ID))
	}
	return nil
}

func (s *AccountService) ResetPassword(ctx context.Context, emailAddr, token, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	user, err := s.userByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}
	if !tokensEqual(user.ResetToken, strings.TrimSpace(token)) {
		return ErrInvalidToken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.ResetPassword(ctx, user.ID, *user.ResetToken, string(hash)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

func (s *AccountService) UpdatePassword(ctx context.Context, identity *domain.Identity, currentPassword, newPassword string) error {
	if identity == nil {
		return ErrUnauthenticated
	}
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	user, err := s.users.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnauthenticated
		}
		return fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return s.mapUserErr(err, "update password")
	}
	return nil
}

// UpdateProfileImage sube la imagen y sólo entonces guarda la URL resultante.
func (s *AccountService) UpdateProfileImage(ctx context.Context, identity *domain.Identity, imageData string) (string, error) {
	if identity == nil {
		return "", ErrUnauthenticated
	}
	if strings.TrimSpace(imageData) == "" {
		return "", fmt.Errorf("%w: image data is required", ErrInvalidInput)
	}
	imageURL, err := s.uploader.Upload(ctx, identity.UserID, imageData)
	if err != nil {
		s.logger.Warn("profile image upload failed", zap.Error(err), zap.String("user_id", identity.UserID))
		if errors.Is(err, storage.ErrInvalidImage) {
			return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return "", ErrUploadFailed
	}
	if err := s.users.UpdateProfileImage(ctx, identity.UserID, imageURL); err != nil {
		return "", s.mapUserErr(err, "update profile image")
	}
	return imageURL, nil
}

// GetPublicUser devuelve la proyección pública. Si se pasa nameFilter debe
// coincidir con el nombre normalizado del usuario.
func (s *AccountService) GetPublicUser(ctx context.Context, id string, nameFilter string) (domain.PublicUser, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.PublicUser{}, ErrInvalidDetails
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.PublicUser{}, ErrInvalidDetails
		}
		return domain.PublicUser{}, fmt.Errorf("lookup user: %w", err)
	}
	if nameFilter != "" && normalizeName(nameFilter) != normalizeName(user.Name) {
		return domain.PublicUser{}, ErrInvalidDetails
	}
	return user.Public(), nil
}

func (s *AccountService) Me(ctx context.Context, identity *domain.Identity) (domain.User, error) {
	if identity == nil {
		return domain.User{}, ErrUnauthenticated
	}
	user, err := s.users.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrUnauthenticated
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// ResolveIdentity carga el usuario referenciado por un token ya verificado.
func (s *AccountService) ResolveIdentity(ctx context.Context, userID string) (domain.Identity, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Identity{}, ErrUnauthenticated
		}
		return domain.Identity{}, fmt.Errorf("lookup user: %w", err)
	}
	return domain.Identity{UserID: user.ID, Name: user.Name, Email: user.Email}, nil
}

func (s *AccountService) userByEmail(ctx context.Context, emailAddr string) (domain.User, error) {
	emailAddr = strings.TrimSpace(emailAddr)
	if emailAddr == "" {
		return domain.User{}, ErrUserNotFound
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		return domain.User{}, s.mapUserErr(err, "lookup user")
	}
	return user, nil
}

func (s *AccountService) mapUserErr(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *AccountService) link(path, emailAddr, token string) string {
	q := url.Values{}
	q.Set("email", emailAddr)
	q.Set("token", token)
	return fmt.Sprintf("%s/%s?%s", s.frontendURL, path, q.Encode())
}

// normalizeName pasa a minúsculas y elimina todo el espacio en blanco.
func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "")
}
