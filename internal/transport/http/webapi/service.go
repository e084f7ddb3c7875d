// Package webapi exposes the storytelling API over HTTP: account
// management, URL-to-audio resolution, library listing and free-form
// queries against the language model.
package webapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"storyteller-server-go/internal/domain/library"
	"storyteller-server-go/internal/platform/config"
	platformerrors "storyteller-server-go/internal/platform/errors"
	"storyteller-server-go/internal/platform/logging"
	httptransport "storyteller-server-go/internal/transport/http"
)

const sessionCookie = "session"

// Resolver turns article URLs into cached audio references.
type Resolver interface {
	Resolve(ctx context.Context, owner, url string) (string, error)
	ListForOwner(ctx context.Context, owner string) ([]library.Item, error)
}

// Answerer produces a completion for a free-form user query.
type Answerer interface {
	Answer(ctx context.Context, query string) (string, error)
}

// Authenticator covers the account lifecycle the API needs.
type Authenticator interface {
	SignUp(ctx context.Context, username, password string) (bool, error)
	Login(ctx context.Context, username, password string) (string, bool, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (string, bool)
}

// Service wires the web API handlers onto a route group.
type Service struct {
	resolver Resolver
	answerer Answerer
	auth     Authenticator
	cfg      *config.Config
	logger   *logging.Logger
}

func NewService(cfg *config.Config, resolver Resolver, answerer Answerer, auth Authenticator, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &Service{
		resolver: resolver,
		answerer: answerer,
		auth:     auth,
		cfg:      cfg,
		logger:   logger,
	}
}

// Register mounts every route on the given group. Session resolution runs
// on all of them; the owner-scoped ones additionally require a login.
func (s *Service) Register(group *gin.RouterGroup) {
	group.Use(s.sessionContext())

	group.POST("/signup", s.handleSignUp)
	group.POST("/login", s.handleLogin)
	group.POST("/logout", s.handleLogout)
	group.GET("/whoami", s.handleWhoAmI)
	group.POST("/query", s.handleQuery)

	authed := group.Group("")
	authed.Use(s.requireLogin())
	authed.POST("/resolve", s.handleResolve)
	authed.GET("/library", s.handleLibrary)
	authed.GET("/admin/system", s.handleSystemInfo)
}

// sessionContext extracts the session token from the cookie or the
// Authorization header and, when it maps to a live session, records the
// username on the request context. It never rejects by itself.
func (s *Service) sessionContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token != "" {
			if username, ok := s.auth.Authenticate(c.Request.Context(), token); ok {
				c.Set("username", username)
				c.Set("token", token)
			}
		}
		c.Next()
	}
}

func (s *Service) requireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := currentUser(c); !ok {
			httptransport.RespondError(c, http.StatusForbidden, "not logged in")
			c.Abort()
			return
		}
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	if cookie, err := c.Cookie(sessionCookie); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	if after, found := strings.CutPrefix(header, "Bearer "); found {
		return strings.TrimSpace(after)
	}
	return ""
}

func currentUser(c *gin.Context) (string, bool) {
	value, exists := c.Get("username")
	if !exists {
		return "", false
	}
	username, ok := value.(string)
	return username, ok && username != ""
}

type resolveRequest struct {
	URL string `json:"url"`
}

func (s *Service) handleResolve(c *gin.Context) {
	username, _ := currentUser(c)

	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		httptransport.RespondError(c, http.StatusBadRequest, "missing url in request data")
		return
	}

	reference, err := s.resolver.Resolve(c.Request.Context(), username, req.URL)
	if err != nil {
		s.logger.WarnTag("API", "resolve %s failed: %v", req.URL, err)
		httptransport.RespondError(c, statusForError(err), platformerrors.Message(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"audio_url": reference})
}

func (s *Service) handleLibrary(c *gin.Context) {
	username, _ := currentUser(c)

	items, err := s.resolver.ListForOwner(c.Request.Context(), username)
	if err != nil {
		httptransport.RespondError(c, http.StatusInternalServerError, platformerrors.Message(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"audio_library_data": items})
}

type queryRequest struct {
	Query string `json:"query"`
}

func (s *Service) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		httptransport.RespondError(c, http.StatusBadRequest, "No user input detected")
		return
	}

	result, err := s.answerer.Answer(c.Request.Context(), req.Query)
	if err != nil {
		s.logger.WarnTag("API", "query failed: %v", err)
		httptransport.RespondError(c, statusForError(err), platformerrors.Message(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

type credentialsRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (s *Service) handleSignUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	ok, err := s.auth.SignUp(c.Request.Context(), req.Name, req.Password)
	if err != nil {
		httptransport.RespondError(c, statusForError(err), platformerrors.Message(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": ok})
}

func (s *Service) handleLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	token, ok, err := s.auth.Login(c.Request.Context(), req.Name, req.Password)
	if err != nil {
		httptransport.RespondError(c, statusForError(err), platformerrors.Message(err))
		return
	}
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"success": false})
		return
	}

	s.setSessionCookie(c, token, s.cfg.Auth.SessionTTL)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Service) handleLogout(c *gin.Context) {
	if token, exists := c.Get("token"); exists {
		if str, ok := token.(string); ok && str != "" {
			if err := s.auth.Logout(c.Request.Context(), str); err != nil {
				s.logger.WarnTag("API", "logout: %v", err)
			}
		}
	}

	s.setSessionCookie(c, "", -time.Second)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Service) handleWhoAmI(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		httptransport.RespondError(c, http.StatusForbidden, "not logged in")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

func (s *Service) setSessionCookie(c *gin.Context, token string, ttl time.Duration) {
	maxAge := int(ttl / time.Second)
	c.SetCookie(sessionCookie, token, maxAge, "/", "", false, true)
}

func statusForError(err error) int {
	switch {
	case platformerrors.IsKind(err, platformerrors.KindValidation):
		return http.StatusBadRequest
	case platformerrors.IsKind(err, platformerrors.KindAuth):
		return http.StatusForbidden
	case platformerrors.IsKind(err, platformerrors.KindFetch),
		platformerrors.IsKind(err, platformerrors.KindExtract),
		platformerrors.IsKind(err, platformerrors.KindSynthesis),
		platformerrors.IsKind(err, platformerrors.KindCompletion):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
