package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var cfg = Config{Secret: "s3cret", Issuer: "nucleus", Audience: "ucl-salesforce"}

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":        "svc-workflow",
		"iss":        "nucleus",
		"aud":        "ucl-salesforce",
		"exp":        time.Now().Add(time.Hour).Unix(),
		"project_id": "p1",
		"roles":      []string{"writer"},
	}
}

func call(t *testing.T, c Config, method, header string) (*Context, error) {
	t.Helper()
	ctx := context.Background()
	if header != "" {
		ctx = metadata.NewIncomingContext(ctx, metadata.Pairs("authorization", header))
	}
	var seen *Context
	_, err := UnaryInterceptor(c)(ctx, nil, &grpc.UnaryServerInfo{FullMethod: method},
		func(ctx context.Context, req any) (any, error) {
			seen = FromContext(ctx)
			return nil, nil
		})
	return seen, err
}

func TestValidate(t *testing.T) {
	got, err := Validate(sign(t, "s3cret", validClaims()), cfg)
	require.NoError(t, err)
	assert.Equal(t, &Context{Subject: "svc-workflow", Issuer: "nucleus", ProjectID: "p1", Roles: []string{"writer"}}, got)
}

func TestValidate_Rejects(t *testing.T) {
	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	wrongAud := validClaims()
	wrongAud["aud"] = "other"

	for name, token := range map[string]string{
		"wrong secret":   sign(t, "nope", validClaims()),
		"expired":        sign(t, "s3cret", expired),
		"wrong audience": sign(t, "s3cret", wrongAud),
		"garbage":        "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Validate(token, cfg)
			assert.Error(t, err)
		})
	}
}

func TestInterceptor(t *testing.T) {
	const method = "/ucl.salesforce.v1.PluginService/Execute"

	seen, err := call(t, Config{}, method, "")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", seen.Subject)

	_, err = call(t, cfg, method, "")
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = call(t, cfg, method, "Bearer "+sign(t, "nope", validClaims()))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	seen, err = call(t, cfg, method, "Bearer "+sign(t, "s3cret", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "svc-workflow", seen.Subject)

	seen, err = call(t, cfg, "/grpc.health.v1.Health/Check", "")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", seen.Subject)
}
