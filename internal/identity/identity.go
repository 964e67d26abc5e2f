// Package identity derives the rate limit subject for a request.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const (
	userPrefix = "user:"
	anonPrefix = "anon:"
)

var errMissingSubject = errors.New("token has no subject")

// RequestMeta holds the caller identity and HTTP metadata for a request.
type RequestMeta struct {
	Subject       string
	Authenticated bool
	ClientIP      string
	UserAgent     string
	Referrer      string
}

type requestMetaKey struct{}

// ContextWithRequestMeta adds request metadata to context.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext extracts request metadata from context.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	if v, ok := ctx.Value(requestMetaKey{}).(RequestMeta); ok {
		return v
	}

	return RequestMeta{}
}

// Resolver maps request credentials to a subject.
type Resolver struct {
	secret []byte
}

// NewResolver creates a resolver that trusts HS256 tokens signed with secret.
// With an empty secret every caller is anonymous.
func NewResolver(secret []byte) *Resolver {
	return &Resolver{secret: secret}
}

// Resolve returns "user:<sub>" for a valid bearer token, otherwise the
// anonymous fingerprint of ip and userAgent. The result is never empty.
func (r *Resolver) Resolve(authorization, ip, userAgent string) (subject string, authenticated bool) {
	if token, ok := bearerToken(authorization); ok && len(r.secret) > 0 {
		if sub, err := r.verify(token); err == nil {
			return userPrefix + sub, true
		}
	}

	return Anonymous(ip, userAgent), false
}

func (r *Resolver) verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	_, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	if claims.Subject == "" {
		return "", errMissingSubject
	}

	return claims.Subject, nil
}

// Anonymous returns a stable fingerprint for callers without identity.
func Anonymous(ip, userAgent string) string {
	hash := sha256.Sum256([]byte(ip + "|" + userAgent))

	return anonPrefix + hex.EncodeToString(hash[:])
}

func bearerToken(authorization string) (string, bool) {
	const prefix = "Bearer "

	if len(authorization) <= len(prefix) || !strings.EqualFold(authorization[:len(prefix)], prefix) {
		return "", false
	}

	return strings.TrimSpace(authorization[len(prefix):]), true
}

// ClientIP extracts the client IP, considering proxies.
func ClientIP(forwardedFor, realIP, remoteAddr string) string {
	// Take the first X-Forwarded-For hop (original client)
	if forwardedFor != "" {
		if idx := strings.Index(forwardedFor, ","); idx != -1 {
			return strings.TrimSpace(forwardedFor[:idx])
		}

		return strings.TrimSpace(forwardedFor)
	}

	if realIP != "" {
		return realIP
	}

	ip, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}

	return ip
}
