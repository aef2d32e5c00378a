// Package httpapi exposes the portal over HTTP with gin. Pages are returned
// as JSON view models.
package httpapi

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/enrollportal/internal/logging"
	"github.com/dmitrijs2005/enrollportal/internal/server/dispatch"
	"github.com/dmitrijs2005/enrollportal/internal/server/models"
	"github.com/dmitrijs2005/enrollportal/internal/server/services"
	"github.com/dmitrijs2005/enrollportal/internal/server/sessions"
	"github.com/gin-gonic/gin"
)

type Accounts interface {
	Register(ctx context.Context, in services.RegistrationInput) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	EmailAvailable(ctx context.Context, email string) (bool, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

type Projects interface {
	ListProjects(ctx context.Context, ownerID int64) ([]*models.Project, error)
	ExportProject(ctx context.Context, ownerID, projectID int64) (*models.Project, error)
	OpenProjectFile(ctx context.Context, ownerID, fileID int64) (*models.ProjectFile, io.ReadCloser, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, rc *dispatch.RequestContext, req dispatch.Request) (*dispatch.Result, error)
}

type Options struct {
	SecretKey       []byte
	SessionTTL      time.Duration
	CookieSecure    bool
	MaxRequestBytes int64
}

type Server struct {
	accounts   Accounts
	projects   Projects
	dispatcher Dispatcher
	sessions   sessions.Store
	opts       Options
	log        logging.Logger
}

func NewServer(accounts Accounts, projects Projects, dispatcher Dispatcher, store sessions.Store,
	opts Options, log logging.Logger) *Server {
	return &Server{
		accounts:   accounts,
		projects:   projects,
		dispatcher: dispatcher,
		sessions:   store,
		opts:       opts,
		log:        log.With("module", "http"),
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), s.loadSession())

	r.POST("/register", s.register)
	r.POST("/login", s.login)
	r.GET("/check-email", s.checkEmail)

	authed := r.Group("/", s.requireSession())
	authed.POST("/logout", s.logout)
	authed.GET("/dashboard", s.dashboard)
	authed.POST("/dashboard", s.dashboardPost)
	authed.GET("/dashboard/projects/:id/export", s.exportProject)
	authed.GET("/dashboard/files/:id", s.downloadFile)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}

func (s *Server) internalError(c *gin.Context, msg string, err error) {
	s.log.Error(c.Request.Context(), msg, "error", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"errors": []string{"Something went wrong. Please try again."}})
}
