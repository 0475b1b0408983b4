package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

const (
	jwtContextKey    = "userToken"
	contextCallerKey = "caller"
)

// newJWTConfig returns the JWT auth middleware config.
func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    conf.SecretKey,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    jwtContextKey,
		Claims:        new(Claims),
	}
}

// optionalJWTMiddleware parses the token when one is provided and lets
// anonymous requests through untouched. Catalog browsing is public but
// admins expect their token honored on the same endpoints.
func optionalJWTMiddleware(conf *core.Config) echo.MiddlewareFunc {
	config := newJWTConfig(conf)
	config.Skipper = func(ctx echo.Context) bool {
		return ctx.Request().Header.Get(echo.HeaderAuthorization) == ""
	}
	return middleware.JWTWithConfig(config)
}

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt   int64  `json:"oriat,omitempty"`
	Email          string `json:"email,omitempty"`
	Role           string `json:"role,omitempty"`
	EmailConfirmed bool   `json:"email_confirmed,omitempty"`
	IsStudent      bool   `json:"is_student,omitempty"` // -> STUDENT PORTAL
	IsAdmin        bool   `json:"is_admin,omitempty"`   // -> ADMIN PORTAL
}

func GetUserClaims(conf *core.Config, usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			Audience:  "academia",
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt:   oriat,
		Email:          usr.Email,
		Role:           usr.Role,
		EmailConfirmed: usr.EmailConfirmed,
		IsStudent:      usr.IsStudent(),
		IsAdmin:        usr.IsAdmin(),
	}
	return claims
}

func authenticate(ctx echo.Context, conf *core.Config, email, pwd string, svc user.Service) (*Claims, error) {
	reqCtx := ctx.Request().Context()

	usr, err := svc.GetByEmail(reqCtx, email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	usr, err = svc.SetLastLogin(reqCtx, usr)
	if err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return GetUserClaims(conf, usr), nil
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(conf.SecretKey)
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(jwtContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextCaller resolves the calling identity into a core.Caller; the
// effective role always goes through the user service so an unknown identity
// gets a student profile provisioned on first sight.
func getContextCaller(ctx echo.Context, svc user.Service) (core.Caller, error) {
	if clr, ok := ctx.Get(contextCallerKey).(core.Caller); ok {
		return clr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return core.Caller{}, errors.Wrap(err, "getting context claims")
	}

	clr := core.Caller{
		ID:    claims.Subject,
		Email: claims.Email,
		Role: svc.ResolveRole(ctx.Request().Context(), user.Identity{
			ID:             claims.Subject,
			Email:          claims.Email,
			RoleClaim:      claims.Role,
			EmailConfirmed: claims.EmailConfirmed,
		}),
		EmailConfirmed: claims.EmailConfirmed,
	}
	ctx.Set(contextCallerKey, clr)
	return clr, nil
}

// getOptionalCaller is getContextCaller for endpoints behind the optional JWT
// middleware: no token means an anonymous caller, not an error.
func getOptionalCaller(ctx echo.Context, svc user.Service) (core.Caller, error) {
	if _, ok := ctx.Get(jwtContextKey).(*jwt.Token); !ok {
		return core.Caller{}, nil
	}
	return getContextCaller(ctx, svc)
}

func refreshToken(ctx echo.Context, conf *core.Config, svc user.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return "", errors.Wrap(err, "finding user by ID")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	newClaims := GetUserClaims(conf, usr, claims.OrigIssuedAt)
	token, err := GenerateToken(conf, newClaims)
	return token, errors.Wrap(err, "generating token")
}
