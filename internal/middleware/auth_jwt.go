package middleware

import (
	"errors"
	"net/http"
	"strings"

	"storefront/internal/config"
	"storefront/internal/domain/model"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	CtxIdentityKey = "identity"  // model.Identity
	CtxUserRoleKey = "user_role" // string

	// ゲストのセッションID
	HeaderSessionID = "X-Session-ID"
)

// リクエストの持ち主を決めるミドルウェア。
// Bearer トークンがあれば顧客、なければ X-Session-ID のゲスト。
// X-Session-ID もなければ新しく払い出してレスポンスヘッダで返す。
func ResolveIdentity(cfg config.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authz := c.Request().Header.Get("Authorization")
			if authz != "" {
				customerID, role, err := parseBearer(authz, cfg.JWTSecret)
				if err != nil {
					return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
				}
				c.Set(CtxIdentityKey, model.Identified(customerID))
				c.Set(CtxUserRoleKey, role)
				return next(c)
			}

			sessionID := strings.TrimSpace(c.Request().Header.Get(HeaderSessionID))
			if sessionID == "" {
				sessionID = uuid.NewString()
			} else if len(sessionID) > 255 {
				return c.JSON(http.StatusBadRequest, errorJSON("invalid session id"))
			}
			c.Response().Header().Set(HeaderSessionID, sessionID)
			c.Set(CtxIdentityKey, model.Anonymous(sessionID))
			return next(c)
		}
	}
}

// contextから Identity を取り出す
func IdentityFrom(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(CtxIdentityKey).(model.Identity)
	if !ok || id == nil {
		return nil, false
	}
	return id, true
}

// Authorization ヘッダを検証して (sub, role) を返す
func parseBearer(authz string, secret string) (string, string, error) {
	//Bearer形式か確認してtokenを抜く
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", "", errors.New("bad scheme")
	}
	rawToken := strings.TrimSpace(parts[1])
	if rawToken == "" {
		return "", "", errors.New("empty token")
	}

	//JWTをパースして検証する
	token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || token == nil || !token.Valid {
		return "", "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("invalid claims")
	}

	sub, err := parseString(claims["sub"])
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", "", errors.New("invalid sub")
	}

	//role は任意（なければ一般顧客）
	role, _ := parseString(claims["role"])
	return sub, role, nil
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}

func parseString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.New("invalid string")
	}
	return s, nil
}
