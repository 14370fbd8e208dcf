package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mailsift/sender-patterns/internal/core"
)

// Analyzer is the part of the pattern service the trigger surface needs.
type Analyzer interface {
	Enqueue(accountID, senderEmail string)
}

// Server exposes the internal trigger and maintenance endpoints. It is meant
// to sit behind the application's private network; callers authenticate with
// a shared secret header.
type Server struct {
	analyzer Analyzer
	store    core.Store
	secret   string
	logger   *zap.Logger
	srv      *http.Server
}

// NewServer creates a new internal HTTP server
func NewServer(analyzer Analyzer, store core.Store, listenAddr, secret string, logger *zap.Logger) *Server {
	s := &Server{
		analyzer: analyzer,
		store:    store,
		secret:   secret,
		logger:   logger,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	internal := router.Group("/internal/v1", s.requireSecret)
	internal.POST("/analyze", s.triggerAnalysis)
	internal.POST("/groups/:id/items", s.bulkUpsertItems)

	s.srv = &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}
	return s
}

// Start begins serving in a background goroutine
func (s *Server) Start() {
	go func() {
		s.logger.Info("Starting internal HTTP server", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// requireSecret rejects callers that do not present the shared secret.
func (s *Server) requireSecret(c *gin.Context) {
	presented := c.GetHeader("X-Internal-Secret")
	if s.secret == "" ||
		subtle.ConstantTimeCompare([]byte(presented), []byte(s.secret)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

type analyzeRequest struct {
	AccountID   string `json:"account_id" binding:"required"`
	SenderEmail string `json:"sender_email" binding:"required"`
}

// triggerAnalysis accepts a sender analysis trigger and returns immediately.
// The analysis itself runs detached; the caller only learns that the trigger
// was accepted.
func (s *Server) triggerAnalysis(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.analyzer.Enqueue(req.AccountID, req.SenderEmail)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

type groupItemRequest struct {
	Type    string `json:"type" binding:"required"`
	Value   string `json:"value" binding:"required"`
	Exclude bool   `json:"exclude"`
}

// bulkUpsertItems writes a batch of criteria into a rule group, overwriting
// the exclude flag of rows that already exist.
func (s *Server) bulkUpsertItems(c *gin.Context) {
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	var reqs []groupItemRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items := make([]core.GroupItem, 0, len(reqs))
	for _, r := range reqs {
		itemType := core.GroupItemType(r.Type)
		if !itemType.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid item type %q", r.Type)})
			return
		}
		items = append(items, core.GroupItem{
			Type:    itemType,
			Value:   r.Value,
			Exclude: r.Exclude,
		})
	}

	if err := s.store.BulkUpsertGroupItems(c.Request.Context(), uint(groupID), items); err != nil {
		s.logger.Error("Bulk group item upsert failed",
			zap.Uint64("group_id", groupID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}
	c.Status(http.StatusNoContent)
}

// healthCheck reports process and storage health.
func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"storage": "error",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"storage": "ok",
	})
}
