package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Provider resolves session tokens to users and tracks sign-outs.
type Provider struct {
	jwt *JWTManager
	now func() time.Time

	mu          sync.Mutex
	revoked     map[string]time.Time // session id -> token expiry
	subscribers map[int]func(User)
	nextSub     int
}

func NewProvider(jwt *JWTManager) *Provider {
	return &Provider{
		jwt:         jwt,
		now:         time.Now,
		revoked:     make(map[string]time.Time),
		subscribers: make(map[int]func(User)),
	}
}

// Authenticate validates token and returns its user. Signed-out sessions are
// rejected with ErrRevokedToken.
func (p *Provider) Authenticate(token string) (*User, error) {
	claims, err := p.jwt.Validate(token)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	_, revoked := p.revoked[claims.ID]
	p.mu.Unlock()
	if revoked {
		return nil, ErrRevokedToken
	}

	u := &User{ID: claims.UserID, Email: claims.Email, SessionID: claims.ID}
	if claims.ExpiresAt != nil {
		u.ExpiresAt = claims.ExpiresAt.Time
	}
	return u, nil
}

// CurrentUser returns the user attached to ctx, or nil when signed out.
func (p *Provider) CurrentUser(ctx context.Context) *User {
	return FromContext(ctx)
}

// SignOut revokes the user's session and notifies subscribers.
func (p *Provider) SignOut(_ context.Context, u *User) error {
	if u == nil || u.SessionID == "" {
		return fmt.Errorf("sign out: %w", ErrMissingToken)
	}

	p.mu.Lock()
	p.pruneLocked()
	if _, done := p.revoked[u.SessionID]; done {
		p.mu.Unlock()
		return nil
	}
	expiry := u.ExpiresAt
	if expiry.IsZero() {
		expiry = p.now().Add(p.jwt.tokenDuration)
	}
	p.revoked[u.SessionID] = expiry
	subs := make([]func(User), 0, len(p.subscribers))
	for _, fn := range p.subscribers {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(*u)
	}
	return nil
}

// OnSignedOut registers fn for sign-out notifications. The returned func
// removes the subscription.
func (p *Provider) OnSignedOut(fn func(User)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subscribers[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subscribers, id)
		p.mu.Unlock()
	}
}

// pruneLocked drops revocations whose tokens have expired anyway.
func (p *Provider) pruneLocked() {
	now := p.now()
	for id, exp := range p.revoked {
		if now.After(exp) {
			delete(p.revoked, id)
		}
	}
}
