// Package api exposes the ingestion and answering pipelines over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"pdfrag/internal/domain"
	"pdfrag/internal/logger"
)

// Options configures the HTTP layer.
type Options struct {
	Logger         *slog.Logger
	Observer       HTTPObserver
	MetricsHandler http.Handler
	MaxUploadBytes int64
	RequestTimeout time.Duration
	DefaultK       int
}

// Server holds the handlers of the HTTP API.
type Server struct {
	svc    domain.RAGService
	opts   Options
	logger *slog.Logger
}

// NewServer creates the API over svc.
func NewServer(svc domain.RAGService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if opts.DefaultK <= 0 {
		opts.DefaultK = 3
	}
	return &Server{svc: svc, opts: opts, logger: opts.Logger.With("component", "api")}
}

// Router builds the gin engine with all middleware and routes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(requestLogger(s.logger))
	if s.opts.Observer != nil {
		router.Use(observe(s.opts.Observer))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", RequestIDHeader}
	corsConfig.ExposeHeaders = []string{RequestIDHeader}
	router.Use(cors.New(corsConfig))

	router.GET("/health", s.health)
	router.GET("/stats", s.stats)
	router.POST("/upload", s.upload)
	router.POST("/ask", s.ask)
	if s.opts.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(s.opts.MetricsHandler))
	}
	return router
}

func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if s.opts.RequestTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), s.opts.RequestTimeout)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().UTC()})
}

func (s *Server) stats(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()
	stats, err := s.svc.Stats(ctx)
	if err != nil {
		_ = c.Error(err)
		respondWithInternalError(c, "Failed to read index stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// UploadResponse is returned by POST /upload.
type UploadResponse struct {
	IngestedChunks int    `json:"ingested_chunks"`
	Summary        string `json:"summary,omitempty"`
}

func (s *Server) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(c, http.StatusRequestEntityTooLarge, "file_too_large",
				fmt.Sprintf("Upload exceeds %d bytes.", s.opts.MaxUploadBytes), nil)
			return
		}
		respondWithBadRequest(c, "A PDF must be sent in the multipart field \"file\".", err.Error())
		return
	}
	if mediaType, _, _ := mime.ParseMediaType(header.Header.Get("Content-Type")); mediaType != "application/pdf" {
		respondWithBadRequest(c, "Only PDF files are supported.", header.Header.Get("Content-Type"))
		return
	}
	f, err := header.Open()
	if err != nil {
		respondWithInternalError(c, "Failed to read upload", err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		respondWithInternalError(c, "Failed to read upload", err)
		return
	}

	source := c.PostForm("source")
	if source == "" {
		source = c.Query("source")
	}
	if source == "" {
		source = header.Filename
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()
	res, err := s.svc.Ingest(ctx, data, source)
	if err != nil {
		_ = c.Error(err)
		respondWithInternalError(c, err.Error(), nil)
		return
	}
	c.JSON(http.StatusOK, UploadResponse{IngestedChunks: res.Chunks, Summary: res.Summary})
}

// AskRequest is the JSON body accepted by POST /ask.
type AskRequest struct {
	Question string `json:"question"`
	K        int    `json:"k"`
	Model    string `json:"model"`
}

func (s *Server) ask(c *gin.Context) {
	var req AskRequest
	if c.Request.ContentLength != 0 && strings.HasPrefix(c.ContentType(), "application/json") {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithBadRequest(c, "Invalid JSON body.", err.Error())
			return
		}
	}
	if q := c.Query("question"); q != "" {
		req.Question = q
	}
	if k := c.Query("k"); k != "" {
		n, err := strconv.Atoi(k)
		if err != nil {
			respondWithBadRequest(c, "k must be an integer.", k)
			return
		}
		req.K = n
	}
	if m := c.Query("model"); m != "" {
		req.Model = m
	}
	if strings.TrimSpace(req.Question) == "" {
		respondWithBadRequest(c, "Empty question.", nil)
		return
	}
	if req.K <= 0 {
		req.K = s.opts.DefaultK
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()
	ans, err := s.svc.Answer(ctx, req.Question, req.K, req.Model)
	if err != nil {
		_ = c.Error(err)
		respondWithInternalError(c, err.Error(), nil)
		return
	}
	c.JSON(http.StatusOK, ans)
}
