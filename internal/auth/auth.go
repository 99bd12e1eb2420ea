// Package auth validates bearer tokens on incoming gRPC calls.
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type contextKey string

const contextKeyAuth contextKey = "auth"

// Config holds the HMAC secret and expected claims. An empty Secret
// accepts every call as anonymous.
type Config struct {
	Secret   string `yaml:"secret"`
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
}

// Context is the authenticated caller.
type Context struct {
	Subject   string   `json:"subject"`
	Issuer    string   `json:"issuer,omitempty"`
	ProjectID string   `json:"projectId,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

// FromContext returns the caller attached by the interceptor.
func FromContext(ctx context.Context) *Context {
	if a, ok := ctx.Value(contextKeyAuth).(*Context); ok {
		return a
	}
	return &Context{Subject: "anonymous"}
}

// UnaryInterceptor rejects calls without a valid bearer token when a
// secret is configured. Health checks always pass.
func UnaryInterceptor(cfg Config) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if cfg.Secret == "" || strings.HasPrefix(info.FullMethod, "/grpc.health.v1.") {
			return handler(context.WithValue(ctx, contextKeyAuth, &Context{Subject: "anonymous"}), req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		header := ""
		if values := md.Get("authorization"); len(values) > 0 {
			header = values[0]
		}
		if !strings.HasPrefix(header, "Bearer ") {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}

		authCtx, err := Validate(strings.TrimPrefix(header, "Bearer "), cfg)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}
		return handler(context.WithValue(ctx, contextKeyAuth, authCtx), req)
	}
}

// Validate parses an HS256 token and checks issuer and audience when set.
func Validate(tokenString string, cfg Config) (*Context, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type")
	}

	authCtx := &Context{
		Subject: stringClaim(claims, "sub"),
		Issuer:  stringClaim(claims, "iss"),
	}
	authCtx.ProjectID = stringClaim(claims, "project_id")
	if roles, ok := claims["roles"].([]any); ok {
		for _, r := range roles {
			if s, ok := r.(string); ok {
				authCtx.Roles = append(authCtx.Roles, s)
			}
		}
	}
	return authCtx, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
