package middleware

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/millennium-gate/internal/identity"
)

// RequestMeta is a middleware that resolves the caller subject and adds it,
// with client IP, user-agent, and referrer, to the request context.
func RequestMeta(_ huma.API, resolver *identity.Resolver) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		meta := requestMeta(ctx, resolver)

		newCtx := identity.ContextWithRequestMeta(ctx.Context(), meta)
		ctx = huma.WithContext(ctx, newCtx)

		next(ctx)
	}
}

func requestMeta(ctx huma.Context, resolver *identity.Resolver) identity.RequestMeta {
	ip := identity.ClientIP(ctx.Header("X-Forwarded-For"), ctx.Header("X-Real-IP"), ctx.RemoteAddr())
	ua := ctx.Header("User-Agent")

	subject, authenticated := resolver.Resolve(ctx.Header("Authorization"), ip, ua)

	return identity.RequestMeta{
		Subject:       subject,
		Authenticated: authenticated,
		ClientIP:      ip,
		UserAgent:     ua,
		Referrer:      ctx.Header("Referer"),
	}
}
