package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/enrollportal/internal/common"
	"github.com/dmitrijs2005/enrollportal/internal/cryptox"
	"github.com/dmitrijs2005/enrollportal/internal/server/auth"
	"github.com/dmitrijs2005/enrollportal/internal/server/dispatch"
	"github.com/dmitrijs2005/enrollportal/internal/server/forms"
	"github.com/dmitrijs2005/enrollportal/internal/server/services"
	"github.com/gin-gonic/gin"
)

const (
	MsgRegistered         = "Registration successful. You can now log in."
	MsgRegistrationFailed = "Registration failed. Please try again."
	MsgBadCredentials     = "Incorrect email or password."
	MsgLoggedIn           = "Login successful."
	MsgLoggedOut          = "You have been logged out."
)

var (
	registrationFiles = []string{dispatch.FieldProfilePhoto, dispatch.FieldResume, dispatch.FieldCoverLetter}
	dashboardFiles    = []string{
		dispatch.FieldProfilePhoto, dispatch.FieldResume, dispatch.FieldCoverLetter,
		dispatch.FieldProjectFiles, dispatch.FieldProjectFilesNew,
	}
)

func (s *Server) register(c *gin.Context) {
	f, err := readForm(c.Writer, c.Request, s.opts.MaxRequestBytes, registrationFiles)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": []string{MsgRegistrationFailed}})
		return
	}
	defer f.release()

	if len(f.tooLong) > 0 {
		s.validationFailed(c, f.tooLong, MsgRegistrationFailed)
		return
	}

	reg, err := forms.ParseRegistration(f.values)
	if err != nil {
		s.validationFailed(c, err, MsgRegistrationFailed)
		return
	}

	user, err := s.accounts.Register(c.Request.Context(), services.RegistrationInput{
		Fields:      reg.Fields,
		Password:    reg.Password,
		Photo:       f.first(dispatch.FieldProfilePhoto),
		Resume:      f.first(dispatch.FieldResume),
		CoverLetter: f.first(dispatch.FieldCoverLetter),
	})
	if err != nil {
		s.validationFailed(c, err, MsgRegistrationFailed)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"errors": []string{}, "success": MsgRegistered, "user_id": user.ID})
}

// validationFailed answers 422 with the validation messages in err, or logs
// err and answers 500 with generic.
func (s *Server) validationFailed(c *gin.Context, err error, generic string) {
	var verrs common.ValidationErrors
	if errors.As(err, &verrs) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": []string(verrs)})
		return
	}
	s.log.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"errors": []string{generic}})
}

func (s *Server) login(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": []string{forms.MsgLogin}})
		return
	}
	email, password, err := forms.ParseLogin(c.Request.PostForm)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": []string{forms.MsgLogin}})
		return
	}

	ctx := c.Request.Context()
	user, err := s.accounts.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"errors": []string{MsgBadCredentials}})
			return
		}
		s.internalError(c, "authenticate failed", err)
		return
	}

	sess, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		s.internalError(c, "create session failed", err)
		return
	}
	token, err := auth.GenerateToken(sess.ID, user.ID, s.opts.SecretKey, s.opts.SessionTTL)
	if err != nil {
		s.internalError(c, "sign session token failed", err)
		return
	}

	s.setSessionCookie(c, token)
	c.JSON(http.StatusOK, gin.H{"errors": []string{}, "success": MsgLoggedIn, common.CSRFFieldName: sess.CSRFToken})
}

// logout ends the session. Like every other state change it needs the
// session's anti-forgery token.
func (s *Server) logout(c *gin.Context) {
	rc := requestContext(c)
	if err := c.Request.ParseForm(); err != nil || !cryptox.TokensEqual(rc.CSRFToken, c.Request.PostForm.Get(common.CSRFFieldName)) {
		c.JSON(http.StatusForbidden, gin.H{"errors": []string{dispatch.MsgInvalidCSRF}})
		return
	}
	if err := s.sessions.Delete(c.Request.Context(), rc.SessionID); err != nil {
		s.internalError(c, "delete session failed", err)
		return
	}
	s.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"errors": []string{}, "success": MsgLoggedOut})
}

func (s *Server) checkEmail(c *gin.Context) {
	email := c.Query("email")
	if !forms.ValidEmail(email) {
		c.JSON(http.StatusOK, gin.H{"valid": false, "exists": false, "message": "Invalid email format"})
		return
	}

	available, err := s.accounts.EmailAvailable(c.Request.Context(), email)
	if err != nil {
		s.internalError(c, "email lookup failed", err)
		return
	}
	msg := "Email is available"
	if !available {
		msg = "Email already registered"
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "exists": !available, "message": msg})
}

func (s *Server) dashboard(c *gin.Context) {
	s.renderDashboard(c, requestContext(c), &dispatch.Result{Errors: []string{}})
}

func (s *Server) dashboardPost(c *gin.Context) {
	rc := requestContext(c)

	f, err := readForm(c.Writer, c.Request, s.opts.MaxRequestBytes, dashboardFiles)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": []string{"Malformed form data."}})
		return
	}
	defer f.release()

	if len(f.tooLong) > 0 {
		s.renderDashboard(c, rc, &dispatch.Result{Errors: f.tooLong})
		return
	}

	res, err := s.dispatcher.Dispatch(c.Request.Context(), rc, dispatch.Request{
		Action:    f.values.Get("action"),
		CSRFToken: f.values.Get(common.CSRFFieldName),
		Values:    f.values,
		Files:     f.files,
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"errors": []string{"Please log in."}})
		return
	}
	s.renderDashboard(c, rc, res)
}

// renderDashboard loads the caller's profile and projects after any action
// has finished. A session whose user disappeared is ended.
func (s *Server) renderDashboard(c *gin.Context, rc *dispatch.RequestContext, res *dispatch.Result) {
	ctx := c.Request.Context()

	user, err := s.accounts.GetUser(ctx, rc.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_ = s.sessions.Delete(ctx, rc.SessionID)
			s.clearSessionCookie(c)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"errors": []string{"Please log in."}})
			return
		}
		s.internalError(c, "load user failed", err)
		return
	}

	projects, err := s.projects.ListProjects(ctx, rc.UserID)
	if err != nil {
		s.internalError(c, "list projects failed", err)
		return
	}

	errs := res.Errors
	if errs == nil {
		errs = []string{}
	}
	c.JSON(http.StatusOK, dashboardView{
		Errors:    errs,
		Success:   res.Success,
		CSRFToken: rc.CSRFToken,
		User:      newUserView(user),
		Projects:  newProjectViews(projects),
	})
}

func pathID(c *gin.Context) int64 {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

func (s *Server) exportProject(c *gin.Context) {
	rc := requestContext(c)
	id := pathID(c)

	p, err := s.projects.ExportProject(c.Request.Context(), rc.UserID, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"errors": []string{dispatch.MsgProjectNotFound}})
			return
		}
		s.internalError(c, "export project failed", err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", "attachment; filename="+exportFilename(p.ID))
	c.Status(http.StatusOK)
	if err := writeProjectCSV(c.Writer, p); err != nil {
		s.log.Error(c.Request.Context(), "write export failed", "project_id", p.ID, "error", err)
	}
}

func (s *Server) downloadFile(c *gin.Context) {
	rc := requestContext(c)

	meta, body, err := s.projects.OpenProjectFile(c.Request.Context(), rc.UserID, pathID(c))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"errors": []string{dispatch.MsgFileNotFound}})
			return
		}
		s.internalError(c, "open project file failed", err)
		return
	}
	defer body.Close()

	mimeType := meta.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, meta.FileSize, mimeType, body, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", meta.OriginalName),
	})
}
