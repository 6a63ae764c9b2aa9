package interceptors

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/pulsesparkai/my-old-space/internal/infra/security"
)

const (
	authorizationKey = "authorization"
	bearerPrefix     = "bearer "
)

// TokenVerifier exposes the access-token verification required by the auth interceptor.
type TokenVerifier interface {
	Verify(token string) (*security.AccessTokenClaims, error)
}

// AuthOptions fine-tunes interceptor behaviour.
type AuthOptions struct {
	// AllowMethods lists full method names served without a token.
	AllowMethods []string
	// AllowServices lists service names whose every method is served without a token.
	AllowServices []string
	Logger        *zap.Logger
}

// AuthInterceptor validates incoming requests using hosted-auth access tokens.
type AuthInterceptor struct {
	verifier      TokenVerifier
	logger        *zap.Logger
	allow         map[string]struct{}
	allowServices map[string]struct{}
}

// NewAuthInterceptor constructs a new AuthInterceptor instance.
func NewAuthInterceptor(verifier TokenVerifier, opts AuthOptions) *AuthInterceptor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuthInterceptor{
		verifier:      verifier,
		logger:        logger,
		allow:         toSet(opts.AllowMethods),
		allowServices: toSet(opts.AllowServices),
	}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func (ai *AuthInterceptor) allowed(fullMethod string) bool {
	if _, ok := ai.allow[fullMethod]; ok {
		return true
	}
	service, _ := splitFullMethod(fullMethod)
	_, ok := ai.allowServices[service]
	return ok
}

func (ai *AuthInterceptor) authenticate(ctx context.Context, fullMethod string) (context.Context, error) {
	token, err := tokenFromMetadata(ctx)
	if err != nil {
		ai.logger.Warn("gRPC authentication failed", zap.String("method", fullMethod), zap.Error(err))
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	claims, err := ai.verifier.Verify(token)
	if err != nil {
		ai.logger.Warn("gRPC token validation failed", zap.String("method", fullMethod), zap.Error(err))
		switch {
		case errors.Is(err, security.ErrExpiredAccessToken):
			return nil, status.Error(codes.Unauthenticated, "access token expired")
		case errors.Is(err, security.ErrInvalidAccessToken):
			return nil, status.Error(codes.Unauthenticated, "invalid access token")
		default:
			return nil, status.Error(codes.Unauthenticated, "failed to validate access token")
		}
	}

	return WithClaims(ctx, claims), nil
}

// UnaryServerInterceptor returns a gRPC unary interceptor that enforces authentication.
func (ai *AuthInterceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if ai == nil || ai.verifier == nil || ai.allowed(info.FullMethod) {
			return handler(ctx, req)
		}

		authCtx, err := ai.authenticate(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(authCtx, req)
	}
}

// StreamServerInterceptor returns a gRPC stream interceptor that enforces authentication.
func (ai *AuthInterceptor) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if ai == nil || ai.verifier == nil || ai.allowed(info.FullMethod) {
			return handler(srv, ss)
		}

		authCtx, err := ai.authenticate(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &authenticatedStream{ServerStream: ss, ctx: authCtx})
	}
}

type authenticatedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authenticatedStream) Context() context.Context {
	return s.ctx
}

type claimsContextKey struct{}

// WithClaims returns a derived context containing token claims.
func WithClaims(ctx context.Context, claims *security.AccessTokenClaims) context.Context {
	if claims == nil {
		return ctx
	}
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext extracts token claims from context when available.
func ClaimsFromContext(ctx context.Context) (*security.AccessTokenClaims, bool) {
	if ctx == nil {
		return nil, false
	}
	claims, ok := ctx.Value(claimsContextKey{}).(*security.AccessTokenClaims)
	return claims, ok && claims != nil
}

func tokenFromMetadata(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("missing metadata")
	}

	values := md.Get(authorizationKey)
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return "", errors.New("authorization token required")
	}

	value := strings.TrimSpace(values[0])
	if len(value) < len(bearerPrefix) || !strings.HasPrefix(strings.ToLower(value), bearerPrefix) {
		return "", errors.New("invalid authorization header")
	}

	token := strings.TrimSpace(value[len(bearerPrefix):])
	if token == "" {
		return "", errors.New("authorization token required")
	}

	return token, nil
}
