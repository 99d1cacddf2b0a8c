// Package devserver is an in-memory implementation of the schedule service
// for local development and contract tests.
package devserver

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"breaktime/internal/remote"
	"breaktime/internal/schedule"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Server holds schedules and usage logs in memory.
type Server struct {
	mu        sync.RWMutex
	schedules map[string]schedule.Config
	usage     map[string][]remote.UsageRecord
	tokens    map[string]struct{} // nil accepts any bearer token
}

// Option configures a Server.
type Option func(*Server)

// WithTokens restricts access to the given bearer tokens.
func WithTokens(tokens ...string) Option {
	return func(s *Server) {
		s.tokens = make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			s.tokens[t] = struct{}{}
		}
	}
}

// New creates an empty server.
func New(opts ...Option) *Server {
	s := &Server{
		schedules: make(map[string]schedule.Config),
		usage:     make(map[string][]remote.UsageRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the gin engine serving the API.
func (s *Server) Handler() http.Handler {
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	engine.Use(cors.New(corsConfig))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/v1", s.requireToken)
	v1.GET("/accounts/:id/schedule", s.getSchedule("account"))
	v1.PUT("/accounts/:id/schedule", s.putSchedule("account"))
	v1.GET("/organizations/:id/schedule", s.getSchedule("organization"))
	v1.PUT("/organizations/:id/schedule", s.putSchedule("organization"))
	v1.POST("/accounts/:id/usage", s.appendUsage)
	v1.GET("/accounts/:id/usage", s.listUsage)
	return engine
}

// SetSchedule seeds a schedule. scope is "account" or "organization".
func (s *Server) SetSchedule(scope, id string, cfg schedule.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[scope+"/"+id] = cfg.Clone()
}

// Schedule returns a stored schedule.
func (s *Server) Schedule(scope, id string) (schedule.Config, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.schedules[scope+"/"+id]
	return cfg.Clone(), ok
}

// Usage returns the account's usage records in arrival order.
func (s *Server) Usage(accountID string) []remote.UsageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]remote.UsageRecord(nil), s.usage[accountID]...)
}

func (s *Server) requireToken(c *gin.Context) {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	if s.tokens != nil {
		if _, known := s.tokens[token]; !known {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown token"})
			return
		}
	}
	c.Next()
}

func (s *Server) getSchedule(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg, ok := s.Schedule(scope, c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no schedule"})
			return
		}
		c.JSON(http.StatusOK, cfg)
	}
}

func (s *Server) putSchedule(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var cfg schedule.Config
		if err := c.ShouldBindJSON(&cfg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := cfg.Validate(); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		s.SetSchedule(scope, c.Param("id"), cfg)
		c.JSON(http.StatusOK, cfg)
	}
}

type usageRequest struct {
	ID              string    `json:"id" binding:"required"`
	DurationSeconds int64     `json:"durationSeconds" binding:"gt=0"`
	CompletedAt     time.Time `json:"completedAt" binding:"required"`
}

func (s *Server) appendUsage(c *gin.Context) {
	var req usageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")

	s.mu.Lock()
	s.usage[id] = append(s.usage[id], remote.UsageRecord{
		ID:              req.ID,
		DurationSeconds: req.DurationSeconds,
		CompletedAt:     req.CompletedAt,
	})
	s.mu.Unlock()

	c.JSON(http.StatusCreated, gin.H{"id": req.ID})
}

func (s *Server) listUsage(c *gin.Context) {
	records := s.Usage(c.Param("id"))
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CompletedAt.Before(records[j].CompletedAt)
	})
	var total int64
	for _, r := range records {
		total += r.DurationSeconds
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "totalSeconds": total})
}
