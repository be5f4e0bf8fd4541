package auth

import "marketplace-api/internal/domain"

// 身份来源
const (
	SourceSession = "session"
	SourceToken   = "token"
)

// Identity 一次请求解析出的调用者身份
type Identity struct {
	UserID   string
	Username string
	Role     domain.Role
	Source   string
}

func (id *Identity) HasRole(roles ...domain.Role) bool {
	if id == nil {
		return false
	}
	for _, r := range roles {
		if id.Role == r {
			return true
		}
	}
	return false
}

func FromUser(u *domain.User) *Identity {
	return &Identity{UserID: u.ID, Username: u.Username, Role: u.Role, Source: SourceSession}
}

func FromClaims(c *Claims) *Identity {
	return &Identity{UserID: c.UserID, Username: c.Username, Role: c.Role, Source: SourceToken}
}
