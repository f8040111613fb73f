package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"marketplace/internal/apperr"
	"marketplace/internal/models"
	"marketplace/internal/store"
)

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,max=100"`
	Phone    string `json:"phone" validate:"max=30"`
	Role     string `json:"role" validate:"omitempty,oneof=user vendor agent"`

	// Vendor profile, used when Role is vendor.
	VendorName string   `json:"vendorName" validate:"required_if=Role vendor,max=100"`
	Latitude   *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude  *float64 `json:"longitude" validate:"omitempty,longitude"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthTokens struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	ExpiresIn    int64       `json:"expiresIn"`
	User         models.User `json:"user"`
}

// Register creates an account. Vendor accounts also get a vendor profile
// awaiting admin approval.
func (s *Service) Register(ctx context.Context, in RegisterInput) (AuthTokens, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.VendorName = strings.TrimSpace(in.VendorName)
	if in.Role == "" {
		in.Role = models.RoleUser
	}
	if err := s.check(in); err != nil {
		return AuthTokens{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return AuthTokens{}, apperr.Internal(fmt.Errorf("hash password: %w", err))
	}

	now := s.now()
	user := models.User{
		Email:        in.Email,
		PasswordHash: string(hash),
		Name:         in.Name,
		Phone:        strings.TrimSpace(in.Phone),
		Role:         in.Role,
		Addresses:    []models.Address{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.InsertUser(ctx, &user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.Conflict("email already registered")
			}
			return err
		}
		if user.Role != models.RoleVendor {
			return nil
		}
		vendor := models.Vendor{
			OwnerID:   user.ID,
			Name:      in.VendorName,
			Email:     user.Email,
			Phone:     user.Phone,
			Latitude:  in.Latitude,
			Longitude: in.Longitude,
			Status:    models.VendorRequested,
			CreatedAt: now,
		}
		return s.store.InsertVendor(ctx, &vendor)
	})
	if err != nil {
		return AuthTokens{}, err
	}

	log.Println("[AUTH] [INFO] registered:", user.Email, user.Role)
	return s.issueTokens(ctx, user)
}

// EnsureAdmin creates the bootstrap admin account if no account uses email.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	now := s.now()
	admin := models.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         "admin",
		Role:         models.RoleAdmin,
		Addresses:    []models.Address{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.InsertUser(ctx, &admin); err != nil && !errors.Is(err, store.ErrDuplicate) {
		return err
	}
	log.Println("[AUTH] [INFO] admin account ensured:", email)
	return nil
}

func (s *Service) Login(ctx context.Context, in LoginInput) (AuthTokens, error) {
	if err := s.check(in); err != nil {
		return AuthTokens{}, err
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Println("[AUTH] [ERROR] login invalid credentials")
			return AuthTokens{}, apperr.Unauthorized("invalid credentials")
		}
		return AuthTokens{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		log.Println("[AUTH] [ERROR] login invalid credentials")
		return AuthTokens{}, apperr.Unauthorized("invalid credentials")
	}
	log.Println("[AUTH] [INFO] login succeeded:", user.Email)
	return s.issueTokens(ctx, user)
}

// Refresh trades a live refresh token for a new pair. The old token is
// revoked and points at its replacement.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (AuthTokens, error) {
	plain := strings.TrimSpace(refreshToken)
	if plain == "" {
		return AuthTokens{}, apperr.Validation(map[string]string{"refreshToken": "is required"})
	}

	var tokens AuthTokens
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		token, err := s.store.FindActiveRefreshToken(ctx, hashToken(plain))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.Unauthorized("invalid refresh token")
			}
			return err
		}
		if s.now().After(token.ExpiresAt) {
			return apperr.Unauthorized("refresh token expired")
		}
		user, err := s.store.GetUser(ctx, token.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.Unauthorized("user not found")
			}
			return err
		}
		issued, refreshID, err := s.newTokens(ctx, user)
		if err != nil {
			return err
		}
		if err := s.store.RevokeRefreshToken(ctx, token.ID, &refreshID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.Unauthorized("invalid refresh token")
			}
			return err
		}
		tokens = issued
		return nil
	})
	if err != nil {
		return AuthTokens{}, err
	}
	return tokens, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	plain := strings.TrimSpace(refreshToken)
	if plain == "" {
		return apperr.Validation(map[string]string{"refreshToken": "is required"})
	}
	token, err := s.store.FindActiveRefreshToken(ctx, hashToken(plain))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Unauthorized("invalid refresh token")
		}
		return err
	}
	if err := s.store.RevokeRefreshToken(ctx, token.ID, nil); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

func (s *Service) issueTokens(ctx context.Context, user models.User) (AuthTokens, error) {
	tokens, _, err := s.newTokens(ctx, user)
	return tokens, err
}

func (s *Service) newTokens(ctx context.Context, user models.User) (AuthTokens, primitive.ObjectID, error) {
	if s.auth.JWTSecret == "" {
		return AuthTokens{}, primitive.NilObjectID, apperr.Internal(errors.New("jwt secret is not configured"))
	}
	now := s.now()
	claims := jwt.MapClaims{
		"userId": user.ID.Hex(),
		"role":   user.Role,
		"email":  user.Email,
		"exp":    now.Add(s.auth.AccessTokenTTL).Unix(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.auth.JWTSecret))
	if err != nil {
		return AuthTokens{}, primitive.NilObjectID, apperr.Internal(fmt.Errorf("sign token: %w", err))
	}

	plainRefresh := generateRefreshString()
	if plainRefresh == "" {
		return AuthTokens{}, primitive.NilObjectID, apperr.Internal(errors.New("could not generate refresh token"))
	}
	refresh := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(plainRefresh),
		ExpiresAt: now.Add(s.auth.RefreshTokenTTL),
		CreatedAt: now,
	}
	if err := s.store.InsertRefreshToken(ctx, &refresh); err != nil {
		return AuthTokens{}, primitive.NilObjectID, err
	}
	return AuthTokens{
		AccessToken:  access,
		RefreshToken: plainRefresh,
		ExpiresIn:    int64(s.auth.AccessTokenTTL.Seconds()),
		User:         user,
	}, refresh.ID, nil
}

// ParseAccessToken verifies an HS256 access token and returns its caller.
func (s *Service) ParseAccessToken(raw string) (Actor, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.auth.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return Actor{}, apperr.Unauthorized("unauthorized")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Actor{}, apperr.Unauthorized("unauthorized")
	}
	userIDValue, _ := claims["userId"].(string)
	userID, err := primitive.ObjectIDFromHex(userIDValue)
	if err != nil {
		return Actor{}, apperr.Unauthorized("unauthorized")
	}
	role, _ := claims["role"].(string)
	return Actor{ID: userID, Role: role}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateRefreshString() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}

func (s *Service) Me(ctx context.Context, userID primitive.ObjectID) (models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, notFound(err, "user")
	}
	return user, nil
}

type AddressInput struct {
	Title     string `json:"title" validate:"required,max=60"`
	Detail    string `json:"detail" validate:"required,max=500"`
	Note      string `json:"note" validate:"max=200"`
	IsDefault bool   `json:"isDefault"`
}

// AddAddress appends an address. The first address, or one flagged
// default, becomes the only default.
func (s *Service) AddAddress(ctx context.Context, userID primitive.ObjectID, in AddressInput) ([]models.Address, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Detail = strings.TrimSpace(in.Detail)
	if err := s.check(in); err != nil {
		return nil, err
	}

	unlock, err := s.locks.LockContext(ctx, userKey(userID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	isDefault := in.IsDefault || len(user.Addresses) == 0
	addresses := make([]models.Address, 0, len(user.Addresses)+1)
	for _, a := range user.Addresses {
		if isDefault {
			a.IsDefault = false
		}
		addresses = append(addresses, a)
	}
	addresses = append(addresses, models.Address{
		ID:        uuid.NewString(),
		Title:     in.Title,
		Detail:    in.Detail,
		Note:      strings.TrimSpace(in.Note),
		IsDefault: isDefault,
	})
	if err := s.store.SetAddresses(ctx, userID, addresses); err != nil {
		return nil, notFound(err, "user")
	}
	return addresses, nil
}

// DeleteAddress removes an address; if it was the default the first
// remaining address takes over.
func (s *Service) DeleteAddress(ctx context.Context, userID primitive.ObjectID, addressID string) ([]models.Address, error) {
	unlock, err := s.locks.LockContext(ctx, userKey(userID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	addresses := make([]models.Address, 0, len(user.Addresses))
	removedDefault := false
	found := false
	for _, a := range user.Addresses {
		if a.ID == addressID {
			found = true
			removedDefault = a.IsDefault
			continue
		}
		addresses = append(addresses, a)
	}
	if !found {
		return nil, apperr.NotFound("address not found")
	}
	if removedDefault && len(addresses) > 0 {
		addresses[0].IsDefault = true
	}
	if err := s.store.SetAddresses(ctx, userID, addresses); err != nil {
		return nil, notFound(err, "user")
	}
	return addresses, nil
}
