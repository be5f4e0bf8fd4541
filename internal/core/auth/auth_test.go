package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-api/internal/domain"
)

func TestJWTRoundTrip(t *testing.T) {
	j := NewJWTer("secret", "marketplace", time.Hour)
	u := &domain.User{ID: "u1", Username: "alice", Role: domain.RoleSeller}

	tok, err := j.Issue(u)
	require.NoError(t, err)

	c, err := j.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
	assert.Equal(t, "alice", c.Username)
	assert.Equal(t, domain.RoleSeller, c.Role)
	assert.Equal(t, "marketplace", c.Issuer)

	id := FromClaims(c)
	assert.Equal(t, SourceToken, id.Source)
	assert.True(t, id.HasRole(domain.RoleSeller))
	assert.False(t, id.HasRole(domain.RoleAdmin))
}

func TestJWTExpired(t *testing.T) {
	now := time.Now()
	j := NewJWTer("secret", "marketplace", time.Minute)
	j.Now = func() time.Time { return now }
	tok, err := j.Issue(&domain.User{ID: "u1", Role: domain.RoleUser})
	require.NoError(t, err)

	j.Now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = j.Parse(tok)
	assert.Error(t, err)
}

func TestJWTRejectsForeignTokens(t *testing.T) {
	a := NewJWTer("secret-a", "marketplace", time.Hour)
	b := NewJWTer("secret-b", "marketplace", time.Hour)
	other := NewJWTer("secret-a", "someone-else", time.Hour)

	tok, err := a.Issue(&domain.User{ID: "u1", Role: domain.RoleUser})
	require.NoError(t, err)
	_, err = b.Parse(tok)
	assert.Error(t, err)
	_, err = other.Parse(tok)
	assert.Error(t, err)
	_, err = a.Parse("not-a-token")
	assert.Error(t, err)
}

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore(time.Hour)
	now := time.Now()
	s.now = func() time.Time { return now }

	sid, err := s.Create(ctx, "u1")
	require.NoError(t, err)
	uid, err := s.Lookup(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)

	require.NoError(t, s.Destroy(ctx, sid))
	uid, _ = s.Lookup(ctx, sid)
	assert.Empty(t, uid)

	_, _ = s.Create(ctx, "u2")
	_, _ = s.Create(ctx, "u3")
	s.now = func() time.Time { return now.Add(2 * time.Hour) }
	assert.Equal(t, 2, s.Sweep())
	assert.Equal(t, 0, s.Len())
}

func TestRedisSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisSessionStore(rdb, time.Hour)
	ctx := context.Background()

	sid, err := s.Create(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("session:"+sid))

	uid, err := s.Lookup(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)

	mr.FastForward(2 * time.Hour)
	uid, err = s.Lookup(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, uid)

	sid, _ = s.Create(ctx, "u2")
	require.NoError(t, s.Destroy(ctx, sid))
	assert.False(t, mr.Exists("session:"+sid))
}
