package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"studentpredict/backend/internal/shared"
)

// Service implements registration, login, and token validation against the
// users collection. Tokens are stateless HS256 JWTs; there is no server-side
// session store to revoke.
type Service struct {
	db       *mongo.Database
	config   *shared.AppConfig
	usersCol *mongo.Collection
}

// CustomClaims for JWT
type CustomClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// NewService creates a new auth Service instance
func NewService(db *mongo.Database, config *shared.AppConfig) *Service {
	return &Service{
		db:       db,
		config:   config,
		usersCol: db.Collection("users"),
	}
}

// Register creates a user account and returns it with a fresh token.
// Role defaults to student when omitted.
func (s *Service) Register(ctx context.Context, name, email, password, role string) (*shared.User, string, error) {
	if name == "" || email == "" || password == "" {
		return nil, "", shared.NewError(shared.CodeInvalidArgument, "Name, email, and password are required")
	}

	if role == "" {
		role = shared.RoleStudent
	}
	if !shared.IsValidRole(role) {
		return nil, "", shared.NewErrorf(shared.CodeInvalidArgument, "Invalid role: %s", role)
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	count, err := s.usersCol.CountDocuments(queryCtx, bson.M{"email": email})
	if err != nil {
		return nil, "", shared.WrapError(shared.CodeInternal, "database error", err)
	}
	if count > 0 {
		return nil, "", shared.NewError(shared.CodeInvalidArgument, "User already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.Security.BCryptCost)
	if err != nil {
		return nil, "", shared.WrapError(shared.CodeInternal, "failed to process password", err)
	}

	user := shared.User{
		ID:           shared.GenerateID("user"),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now(),
	}

	if _, err := s.usersCol.InsertOne(queryCtx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, "", shared.NewError(shared.CodeInvalidArgument, "User already exists")
		}
		return nil, "", shared.WrapError(shared.CodeInternal, "failed to create user", err)
	}

	token, err := s.generateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", shared.WrapError(shared.CodeInternal, "failed to generate token", err)
	}

	return &user, token, nil
}

// Login authenticates a user by email and password. When a role is supplied
// it must match the stored role exactly; a mismatch is an auth failure, not
// a lookup miss.
func (s *Service) Login(ctx context.Context, email, password, role string) (*shared.User, string, error) {
	if email == "" || password == "" {
		return nil, "", shared.NewError(shared.CodeInvalidArgument, "Email and password are required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var user shared.User
	err := s.usersCol.FindOne(queryCtx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, "", shared.NewError(shared.CodeUnauthenticated, "Invalid credentials")
		}
		return nil, "", shared.WrapError(shared.CodeInternal, "database error", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", shared.NewError(shared.CodeUnauthenticated, "Invalid credentials")
	}

	if role != "" && user.Role != role {
		return nil, "", shared.NewErrorf(shared.CodeUnauthenticated,
			"Invalid role. Expected %s, got %s", user.Role, role)
	}

	token, err := s.generateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", shared.WrapError(shared.CodeInternal, "failed to generate token", err)
	}

	return &user, token, nil
}

// Authenticate validates a bearer token and returns the user it belongs to.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*shared.User, error) {
	token, claims, err := s.parseToken(tokenString)
	if err != nil || !token.Valid {
		return nil, shared.NewError(shared.CodeUnauthenticated, "Invalid or expired token")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var user shared.User
	if err := s.usersCol.FindOne(queryCtx, bson.M{"_id": claims.UserID}).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, shared.NewError(shared.CodeUnauthenticated, "User not found")
		}
		return nil, shared.WrapError(shared.CodeInternal, "database error", err)
	}

	return &user, nil
}

// ============================================================================
// Internal Helpers
// ============================================================================

// generateToken creates a signed JWT carrying the user id and role
func (s *Service) generateToken(userID, role string) (string, error) {
	expirationTime := time.Now().Add(time.Duration(s.config.Security.JWTExpirationHours) * time.Hour)

	claims := CustomClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			// Unique ID (jti) keeps tokens distinct even at the same timestamp
			ID:        shared.GenerateID("jti"),
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "student-performance-api",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Security.JWTSecret))
}

// parseToken validates the JWT signature and extracts claims
func (s *Service) parseToken(tokenString string) (*jwt.Token, *CustomClaims, error) {
	claims := &CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Security.JWTSecret), nil
	})

	return token, claims, err
}
