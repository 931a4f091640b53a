package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"aligncall/internal/model"
	"aligncall/internal/pkg/jwtutil"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUsernameExists    = errors.New("username already exists")
	ErrEmailExists       = errors.New("email already exists")
	ErrInvalidCredential = errors.New("invalid username or password")
)

// OperatorStore persists dashboard operators.
type OperatorStore interface {
	Create(op *model.Operator) error
	GetByUsername(username string) (*model.Operator, error)
	GetByEmail(email string) (*model.Operator, error)
}

type AuthService struct {
	operators     OperatorStore
	jwtSecret     string
	jwtExpiration time.Duration
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type LoginInput struct {
	Username string
	Password string
}

type AuthResult struct {
	Token    string          `json:"token"`
	Operator *model.Operator `json:"operator"`
}

func NewAuthService(operators OperatorStore, jwtSecret string, jwtExpiration time.Duration) *AuthService {
	return &AuthService{
		operators:     operators,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

func (s *AuthService) Register(input RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(strings.ToLower(input.Email))
	password := strings.TrimSpace(input.Password)

	if username == "" || email == "" || password == "" || len(password) < 8 {
		return nil, ErrInvalidInput
	}

	existingByName, err := s.operators.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if existingByName != nil {
		return nil, ErrUsernameExists
	}

	existingByEmail, err := s.operators.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if existingByEmail != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}

	op := &model.Operator{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.operators.Create(op); err != nil {
		return nil, err
	}

	return s.issue(op)
}

func (s *AuthService) Login(input LoginInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	password := strings.TrimSpace(input.Password)
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}

	op, err := s.operators.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, ErrInvalidCredential
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}

	return s.issue(op)
}

func (s *AuthService) issue(op *model.Operator) (*AuthResult, error) {
	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, op.ID, op.Username)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Operator: op}, nil
}
