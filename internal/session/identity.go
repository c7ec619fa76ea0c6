package session

import (
	"context"
	"sync"
	"time"

	"github.com/Skotchmaster/trends_dashboard/internal/logging"
	"github.com/Skotchmaster/trends_dashboard/internal/models"
	"github.com/Skotchmaster/trends_dashboard/internal/roles"
	"github.com/Skotchmaster/trends_dashboard/internal/tokens"
)

const identityCacheLimit = 1024

type identity struct {
	user *models.UserData
	exp  time.Time
}

// identityKey scopes a token to the API environment it was sent for.
type identityKey struct {
	token string
	env   string
}

// identityCache maps access tokens to the profile they were issued for.
// Entries live until the token expires.
type identityCache struct {
	mu      sync.Mutex
	entries map[identityKey]identity
}

func newIdentityCache() *identityCache {
	return &identityCache{entries: map[identityKey]identity{}}
}

func (c *identityCache) get(token, env string, now time.Time) (*models.UserData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := identityKey{token, env}
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !now.Before(e.exp) {
		delete(c.entries, key)
		return nil, false
	}
	return e.user, true
}

func (c *identityCache) put(token, env string, user *models.UserData, exp, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= identityCacheLimit {
		for k, e := range c.entries {
			if !now.Before(e.exp) {
				delete(c.entries, k)
			}
		}
		if len(c.entries) >= identityCacheLimit {
			clear(c.entries)
		}
	}
	c.entries[identityKey{token, env}] = identity{user: user, exp: exp}
}

// Identify rebuilds the UIState for a request that carries only the page's
// access token. Without a token it falls back to the persisted record; it
// never publishes events or touches the cookie.
func (c *Controller) Identify(ctx context.Context, token, env string, jar Jar) (UIState, bool) {
	if token == "" {
		_, ui, ok := c.hydrate(jar)
		return ui, ok
	}
	if env == "" {
		env = c.defaultEnv
	}

	if rec, ok := jar.Load(); ok && rec.AccessToken == token {
		return fromRecord(rec, c.defaultEnv), true
	}

	now := c.now()
	exp, err := tokens.Expiration(token)
	if err != nil || !now.Before(exp) {
		return UIState{}, false
	}

	user, ok := c.identities.get(token, env, now)
	if !ok {
		// Only /user/me: the /user fallback may name another account.
		me := c.api.Profile(ctx, token, env)
		if !me.OK() || me.User == nil {
			logging.FromContext(ctx).Warn("identify_failed", "kind", me.Kind.String(), "status", me.Status)
			return UIState{}, false
		}
		user = me.User
		c.identities.put(token, env, user, exp, now)
	}

	return UIState{
		Token:          token,
		Role:           roles.OrUser(user.Role),
		User:           user,
		APIEnvironment: env,
	}, true
}
