package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/enrollportal/internal/common"
	"github.com/dmitrijs2005/enrollportal/internal/server/auth"
	"github.com/dmitrijs2005/enrollportal/internal/server/dispatch"
	"github.com/gin-gonic/gin"
)

const (
	cookieName        = common.SessionCookieName
	requestContextKey = "portal.request"
)

// loadSession resolves the session cookie into a dispatch.RequestContext.
// Requests without a valid session continue anonymously.
func (s *Server) loadSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(cookieName)
		if err != nil || raw == "" {
			c.Next()
			return
		}

		claims, err := auth.ParseToken(raw, s.opts.SecretKey)
		if err != nil {
			c.Next()
			return
		}

		sess, err := s.sessions.Get(c.Request.Context(), claims.SessionID)
		if err != nil {
			if !errors.Is(err, common.ErrorNotFound) {
				s.log.Error(c.Request.Context(), "session lookup failed", "error", err)
			}
			c.Next()
			return
		}
		if sess.UserID != claims.UserID {
			c.Next()
			return
		}

		c.Set(requestContextKey, &dispatch.RequestContext{
			UserID:    sess.UserID,
			SessionID: sess.ID,
			CSRFToken: sess.CSRFToken,
		})
		c.Next()
	}
}

func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if requestContext(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"errors": []string{"Please log in."}})
			return
		}
		c.Next()
	}
}

func requestContext(c *gin.Context) *dispatch.RequestContext {
	v, ok := c.Get(requestContextKey)
	if !ok {
		return nil
	}
	rc, _ := v.(*dispatch.RequestContext)
	return rc
}

func (s *Server) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookieName, token, int(s.opts.SessionTTL.Seconds()), "/", "", s.opts.CookieSecure, true)
}

func (s *Server) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookieName, "", -1, "/", "", s.opts.CookieSecure, true)
}
