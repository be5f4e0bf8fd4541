package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"marketplace-api/internal/core/logger"
	"marketplace-api/internal/domain"
	"marketplace-api/pkg/utils"
)

const minPasswordLen = 6

type UserService struct {
	users domain.UserRepository
	log   *zap.Logger
}

func NewUserService(users domain.UserRepository, l *zap.Logger) *UserService {
	return &UserService{users: users, log: l}
}

type RegisterInput struct {
	Username string      `json:"username" binding:"required,min=3,max=32"`
	Email    string      `json:"email"    binding:"required,email"`
	Password string      `json:"password" binding:"required,min=6,max=72"`
	Role     domain.Role `json:"role"     binding:"omitempty,oneof=user seller"`
	FullName string      `json:"fullName" binding:"omitempty,max=128"`
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Role == "" {
		in.Role = domain.RoleUser
	}

	var fe fieldErrs
	if err := fe.check(in); err != nil {
		return nil, err
	}
	// max=72 按字符计数，bcrypt 限制的是字节
	if len(in.Password) > utils.MaxPasswordBytes {
		fe.add("password", "must be at most 72 bytes")
	}
	if err := fe.err("validation failed"); err != nil {
		return nil, err
	}

	if err := s.checkUnique(ctx, in.Email, in.Username); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		ID:           utils.NewID(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		FullName:     strings.TrimSpace(in.FullName),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			// 并发注册：唯一索引兜底，再查一次给出具体字段
			if cerr := s.checkUnique(ctx, in.Email, in.Username); cerr != nil {
				return nil, cerr
			}
			return nil, domain.Conflict("user already exists")
		}
		return nil, err
	}
	logger.FromContext(ctx, s.log).Info("user registered",
		zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

func (s *UserService) checkUnique(ctx context.Context, email, username string) error {
	if u, err := s.users.FindByEmail(ctx, email); err != nil {
		return err
	} else if u != nil {
		return domain.Conflict("email already exists")
	}
	if u, err := s.users.FindByUsername(ctx, username); err != nil {
		return err
	} else if u != nil {
		return domain.Conflict("username already exists")
	}
	return nil
}

// Authenticate 支持邮箱或用户名登录；任何失败都返回同一个错误
func (s *UserService) Authenticate(ctx context.Context, identifier, password string) (*domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, domain.Invalid("identifier and password are required")
	}
	var (
		u   *domain.User
		err error
	)
	if strings.Contains(identifier, "@") {
		u, err = s.users.FindByEmail(ctx, strings.ToLower(identifier))
	} else {
		u, err = s.users.FindByUsername(ctx, identifier)
	}
	if err != nil {
		return nil, err
	}
	if u == nil || !utils.CheckPassword(password, u.PasswordHash) {
		return nil, domain.Unauthenticated("invalid credentials")
	}
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.NotFound("user not found")
	}
	return u, nil
}

type ProfileInput struct {
	FullName    *string `json:"fullName"    binding:"omitempty,max=128"`
	PhoneNumber *string `json:"phoneNumber" binding:"omitempty,max=32"`
	Address     *string `json:"address"     binding:"omitempty,max=255"`
	Bio         *string `json:"bio"         binding:"omitempty,max=2000"`
	AvatarURL   *string `json:"avatarUrl"   binding:"omitempty,max=512"`
}

func (s *UserService) UpdateProfile(ctx context.Context, id string, in ProfileInput) (*domain.User, error) {
	p := domain.Profile{
		FullName:    trimPtr(in.FullName),
		PhoneNumber: trimPtr(in.PhoneNumber),
		Address:     trimPtr(in.Address),
		Bio:         trimPtr(in.Bio),
		AvatarURL:   trimPtr(in.AvatarURL),
	}
	var fe fieldErrs
	if err := fe.check(ProfileInput{
		FullName:    p.FullName,
		PhoneNumber: p.PhoneNumber,
		Address:     p.Address,
		Bio:         p.Bio,
		AvatarURL:   p.AvatarURL,
	}); err != nil {
		return nil, err
	}
	if err := fe.err("validation failed"); err != nil {
		return nil, err
	}
	u, err := s.users.UpdateProfile(ctx, id, p)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.NotFound("user not found")
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context, offset, limit int) ([]domain.User, int64, error) {
	return s.users.List(ctx, offset, limit)
}

// EnsureAdmin 初始化管理员账号；已存在时不修改，返回 created=false
func (s *UserService) EnsureAdmin(ctx context.Context, username, email, password string) (*domain.User, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	if email == "" || username == "" || len(password) < minPasswordLen {
		return nil, false, domain.Invalid("admin bootstrap requires username, email and a password of 6+ characters")
	}
	if u, err := s.users.FindByEmail(ctx, email); err != nil {
		return nil, false, err
	} else if u != nil {
		if u.Role != domain.RoleAdmin {
			return nil, false, domain.Conflict("email already exists")
		}
		return u, false, nil
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, false, err
	}
	u := &domain.User{ID: utils.NewID(), Username: username, Email: email, PasswordHash: hash, Role: domain.RoleAdmin}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, false, domain.Conflict("username already exists")
		}
		return nil, false, err
	}
	return u, true, nil
}
