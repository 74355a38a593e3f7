// Package middleware provides authentication and authorization middleware for the application.
package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"slices"
	"strings"

	"inkpost/internal/config"
	"inkpost/internal/models"
	"inkpost/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Authorization methods recorded on an allowed decision.
const (
	MethodInsecure = "insecure"
	MethodJWT      = "jwt"
	MethodStatic   = "static"
)

// AuthMethodLocal is the Fiber locals key holding the method of an allowed write.
const AuthMethodLocal = "authMethod"

// GateConfig is the credential set a Gate decides against.
type GateConfig struct {
	JWTSecret           string
	StaticToken         string
	AllowInsecureWrites bool
	Realm               string
}

// GateConfigFrom extracts the gate settings from the application config.
func GateConfigFrom(cfg *config.Config) GateConfig {
	return GateConfig{
		JWTSecret:           cfg.JWTSecret,
		StaticToken:         cfg.APIToken,
		AllowInsecureWrites: cfg.AllowInsecureWrites,
		Realm:               cfg.AuthRealm,
	}
}

// Decision is the outcome of evaluating a bearer token.
type Decision struct {
	Allowed     bool
	Method      string
	Code        string
	Description string
	Claims      jwt.MapClaims
}

// Status is the HTTP status a rejected decision is reported with.
func (d Decision) Status() int {
	if d.Code == models.AuthCodeInsufficientScope {
		return fiber.StatusForbidden
	}
	return fiber.StatusUnauthorized
}

// Gate authorizes mutating requests. It is safe for concurrent use; its
// configuration is copied at construction and never changes.
type Gate struct {
	cfg    GateConfig
	secret []byte
	parser *jwt.Parser
}

// NewGate creates a Gate for the given configuration.
func NewGate(cfg GateConfig) *Gate {
	if cfg.Realm == "" {
		cfg.Realm = "inkpost"
	}
	return &Gate{
		cfg:    cfg,
		secret: []byte(cfg.JWTSecret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})),
	}
}

func allow(method string, claims jwt.MapClaims) Decision {
	return Decision{Allowed: true, Method: method, Claims: claims}
}

func deny(code string) Decision {
	return Decision{Code: code, Description: models.AuthDescription(code)}
}

// Evaluate decides whether a request carrying bearer may write. An empty
// bearer means no token was presented.
func (g *Gate) Evaluate(bearer string) Decision {
	hasSecret := g.cfg.JWTSecret != ""
	hasStatic := g.cfg.StaticToken != ""

	if !hasSecret && !hasStatic {
		if g.cfg.AllowInsecureWrites {
			return allow(MethodInsecure, nil)
		}
		return deny(models.AuthCodeRequired)
	}

	if bearer == "" {
		return deny(models.AuthCodeTokenMissing)
	}

	if !hasSecret {
		if g.matchesStatic(bearer) {
			return allow(MethodStatic, nil)
		}
		return deny(models.AuthCodeTokenInvalid)
	}

	claims, err := g.verify(bearer)
	if err == nil {
		if IsAdmin(claims) {
			return allow(MethodJWT, claims)
		}
		d := deny(models.AuthCodeInsufficientScope)
		d.Claims = claims
		return d
	}

	if hasStatic && g.matchesStatic(bearer) {
		return allow(MethodStatic, nil)
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		return deny(models.AuthCodeTokenExpired)
	}
	return deny(models.AuthCodeTokenInvalid)
}

func (g *Gate) verify(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := g.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return g.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	return claims, nil
}

func (g *Gate) matchesStatic(bearer string) bool {
	return subtle.ConstantTimeCompare([]byte(bearer), []byte(g.cfg.StaticToken)) == 1
}

// IsAdmin reports whether verified claims grant the admin scope.
func IsAdmin(claims jwt.MapClaims) bool {
	if s, ok := claims["role"].(string); ok && s == "admin" {
		return true
	}
	if b, ok := claims["admin"].(bool); ok && b {
		return true
	}
	if s, ok := claims["user"].(string); ok && s == "admin" {
		return true
	}
	if s, ok := claims["scope"].(string); ok {
		parts := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' })
		if slices.Contains(parts, "admin") {
			return true
		}
	}
	if list, ok := claims["scopes"].([]interface{}); ok {
		for _, v := range list {
			if s, ok := v.(string); ok && s == "admin" {
				return true
			}
		}
	}
	return false
}

// BearerToken extracts the token from an Authorization header value. Any
// scheme other than Bearer yields an empty token.
func BearerToken(header string) string {
	scheme, value, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}

// Challenge renders the WWW-Authenticate header for a rejected decision.
func (g *Gate) Challenge(d Decision) string {
	return "Bearer realm=" + quoteParam(g.cfg.Realm) +
		", error=" + quoteParam(d.Code) +
		", error_description=" + quoteParam(d.Description)
}

var paramEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// quoteParam renders s as an RFC 7230 quoted-string.
func quoteParam(s string) string {
	return `"` + paramEscaper.Replace(s) + `"`
}

// WriteRequired is a middleware that rejects requests the gate does not allow.
func (g *Gate) WriteRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		d := g.Evaluate(BearerToken(c.Get(fiber.HeaderAuthorization)))
		observability.RecordAuthDecision(d.Method, d.Allowed)

		if !d.Allowed {
			Logger.WarnContext(c.UserContext(), "write rejected",
				"code", d.Code,
				"path", c.Path(),
			)
			c.Set(fiber.HeaderWWWAuthenticate, g.Challenge(d))
			return c.Status(d.Status()).JSON(models.AuthErrorResponse{
				Error:            d.Code,
				ErrorDescription: d.Description,
			})
		}

		c.Locals(AuthMethodLocal, d.Method)
		c.SetUserContext(context.WithValue(c.UserContext(), AuthMethodKey, d.Method))
		return c.Next()
	}
}
