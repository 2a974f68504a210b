package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/exclusivemerch/store-backend/api/responses"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"github.com/exclusivemerch/store-backend/pkg/logger"
)

// maxThrottleBody bounds how much of a request body is buffered to find the email.
const maxThrottleBody = 64 << 10

// RateLimiterStore counts attempts in a fixed window.
type RateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

// ThrottleScope names what a counter is keyed on.
type ThrottleScope string

const (
	ScopeIP    ThrottleScope = "ip"
	ScopeEmail ThrottleScope = "email"
	ScopeUser  ThrottleScope = "user"
)

// ThrottlePolicy is a named fixed window with a limit per scope. A zero limit
// disables that scope.
type ThrottlePolicy struct {
	Name   string
	Window time.Duration
	Limits map[ThrottleScope]int
}

func (p ThrottlePolicy) active() bool {
	if p.Window <= 0 {
		return false
	}
	for _, limit := range p.Limits {
		if limit > 0 {
			return true
		}
	}
	return false
}

func (p ThrottlePolicy) limit(scope ThrottleScope) int { return p.Limits[scope] }

func (p ThrottlePolicy) key(scope ThrottleScope, subject string) string {
	name := strings.ToLower(strings.TrimSpace(p.Name))
	if name == "" {
		name = "default"
	}
	return "rl:" + string(scope) + ":" + name + ":" + subject
}

// Throttle rejects requests with 429 once any scope of the policy exceeds its
// limit inside the window. The email scope reads the JSON body's email field
// and restores the body for the next handler; emails are counted by hash.
func Throttle(policy ThrottlePolicy, store RateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.active() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			subjects := map[ThrottleScope]string{}
			if policy.limit(ScopeIP) > 0 {
				subjects[ScopeIP] = clientIP(r)
			}
			if policy.limit(ScopeUser) > 0 {
				subjects[ScopeUser] = UserIDFromContext(ctx)
			}
			if policy.limit(ScopeEmail) > 0 {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxThrottleBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				if email := emailOf(body); email != "" {
					subjects[ScopeEmail] = hashValue(email)
				}
			}

			for _, scope := range []ThrottleScope{ScopeIP, ScopeUser, ScopeEmail} {
				subject := subjects[scope]
				if subject == "" {
					continue
				}
				count, err := store.IncrWithTTL(ctx, policy.key(scope, subject), policy.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if count > int64(policy.limit(scope)) {
					rejectThrottled(ctx, logg, w, policy, scope, count)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rejectThrottled(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy ThrottlePolicy, scope ThrottleScope, count int64) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":   policy.Name,
			"scope":    scope,
			"attempts": count,
			"limit":    policy.limit(scope),
		}), "request throttled")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(policy.Window.Round(time.Second).Seconds())))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
}

// clientIP prefers the first X-Forwarded-For hop, as set by the load balancer.
func clientIP(r *http.Request) string {
	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func emailOf(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(payload, &body) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(body.Email))
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
