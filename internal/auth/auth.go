package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apperrors "docchat_go_backend/internal/errors"
	"docchat_go_backend/internal/models"
	"docchat_go_backend/internal/services"
	"docchat_go_backend/internal/utils/token"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const userKey = "user"

type TokenVerifier interface {
	Verify(tokenString string) (uuid.UUID, error)
}

type UserLookup interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

func SetupRoutes(r *gin.Engine, verifier TokenVerifier, users UserLookup) {
	auth := r.Group("/auth")
	{
		auth.GET("/user", AuthMiddleware(verifier, users), getUser)
	}
}

// AuthMiddleware resolves the bearer token to an active user and stores it
// on the gin context. Websocket upgrades pass the token as ?token=.
func AuthMiddleware(verifier TokenVerifier, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := zerolog.Ctx(c.Request.Context())

		var tokenString string
		if websocket.IsWebSocketUpgrade(c.Request) {
			tokenString = c.Query("token")
		} else {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				abort(c, "Authorization header is required")
				return
			}
			bearerToken := strings.Split(authHeader, " ")
			if len(bearerToken) != 2 || !strings.EqualFold(bearerToken[0], "Bearer") {
				abort(c, "Invalid authorization header")
				return
			}
			tokenString = bearerToken[1]
		}
		if tokenString == "" {
			abort(c, "Access token is required")
			return
		}

		userID, err := verifier.Verify(tokenString)
		if err != nil {
			log.Debug().Err(err).Msg("token rejected")
			abort(c, "Invalid or expired token")
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), userID)
		if errors.Is(err, services.ErrUserNotFound) {
			abort(c, "User not found")
			return
		}
		if err != nil {
			apperrors.HandleError(c, apperrors.New500Error(err))
			return
		}
		if !user.IsActive {
			abort(c, "Account is deactivated")
			return
		}

		ctx := log.With().Str("user_id", user.ID.String()).Logger().WithContext(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)
		c.Set(userKey, user)
		c.Next()
	}
}

// CurrentUser returns the user stored by AuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(userKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

func abort(c *gin.Context, message string) {
	apperrors.HandleError(c, apperrors.New401Error(message))
}

func getUser(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		abort(c, "User not found in context")
		return
	}
	c.JSON(http.StatusOK, user)
}

var _ TokenVerifier = (*token.Manager)(nil)
