// Package api exposes the RAG pipeline over HTTP: upload, file management,
// streamed chat, and session history.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nexusai/backend/chat"
	"github.com/nexusai/backend/embeddings"
	"github.com/nexusai/backend/extract"
	"github.com/nexusai/backend/history"
	"github.com/nexusai/backend/ingestion"
	"github.com/nexusai/backend/knowledge"
)

// Ingestor runs the document write path.
type Ingestor interface {
	IngestFile(ctx context.Context, filename string, data []byte) (*ingestion.Result, error)
}

// FileIndex is the slice of the knowledge index the API needs directly.
type FileIndex interface {
	ListDistinctFiles(ctx context.Context) ([]string, error)
	DeleteByFile(ctx context.Context, sourceFile string) error
	Ping(ctx context.Context) error
}

// Answerer produces the answer event stream for a query.
type Answerer interface {
	Answer(ctx context.Context, query string, turns []history.Turn) (<-chan chat.Event, error)
}

// Historian is the per-session transcript store.
type Historian interface {
	Get(ctx context.Context, session string) []history.Turn
	Save(ctx context.Context, session string, turns []history.Turn)
	Clear(ctx context.Context, session string)
}

type Server struct {
	ingestor Ingestor
	index    FileIndex
	answerer Answerer
	history  Historian
	logger   zerolog.Logger
	router   *gin.Engine
}

type Options struct {
	CORSOrigins []string
	Debug       bool
}

func New(ingestor Ingestor, index FileIndex, answerer Answerer, historian Historian, logger zerolog.Logger, opts Options) *Server {
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		ingestor: ingestor,
		index:    index,
		answerer: answerer,
		history:  historian,
		logger:   logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = opts.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "NexusAI API is running"})
	})

	apiGroup := router.Group("/api")
	apiGroup.GET("/health", s.handleHealth)
	apiGroup.POST("/upload", s.handleUpload)
	apiGroup.GET("/files", s.handleListFiles)
	apiGroup.DELETE("/files/:filename", s.handleDeleteFile)
	apiGroup.POST("/chat", s.handleChat)
	apiGroup.GET("/history", s.handleGetHistory)
	apiGroup.POST("/history", s.handleSaveHistory)
	apiGroup.DELETE("/history", s.handleClearHistory)

	s.router = router
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	indexOK := s.index.Ping(c.Request.Context()) == nil
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"index":  indexOK,
	})
}

func (s *Server) handleUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "multipart field 'file' is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "could not open uploaded file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "could not read uploaded file"})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "file is empty or could not be parsed"})
		return
	}

	result, err := s.ingestor.IngestFile(c.Request.Context(), fileHeader.Filename, data)
	if err != nil {
		s.logger.Error().Err(err).Str("filename", fileHeader.Filename).Msg("upload failed")
		c.JSON(statusFor(err), gin.H{"detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"filename":     result.Filename,
		"status":       "Ready",
		"chunks_count": result.ChunksCount,
		"timestamp":    float64(result.Timestamp.UnixNano()) / float64(time.Second),
	})
}

func (s *Server) handleListFiles(c *gin.Context) {
	files, err := s.index.ListDistinctFiles(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list files failed")
		c.JSON(statusFor(err), gin.H{"detail": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(files))
	for _, f := range files {
		out = append(out, gin.H{"filename": f, "status": "Ready"})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleDeleteFile(c *gin.Context) {
	filename := c.Param("filename")
	if err := s.index.DeleteByFile(c.Request.Context(), filename); err != nil {
		s.logger.Error().Err(err).Str("filename", filename).Msg("delete file failed")
		c.JSON(statusFor(err), gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"filename": filename, "status": "Deleted"})
}

type chatRequest struct {
	Message string `json:"message"`
}

// handleChat streams the answer as server-sent events: one sources event,
// token events as they arrive, then the [DONE] sentinel.
func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "message is required"})
		return
	}

	ctx := c.Request.Context()
	turns := s.history.Get(ctx, history.DefaultSession)

	events, err := s.answerer.Answer(ctx, req.Message, turns)
	if err != nil {
		s.logger.Error().Err(err).Str("query", req.Message).Msg("chat failed before streaming")
		c.JSON(statusFor(err), gin.H{"detail": err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	for ev := range events {
		switch ev.Kind {
		case chat.EventSources:
			writeSSE(c, gin.H{"sources": ev.Sources})
		case chat.EventToken:
			writeSSE(c, gin.H{"token": ev.Token})
		case chat.EventDone:
			c.Writer.WriteString("data: [DONE]\n\n")
		}
		c.Writer.Flush()
	}
}

func writeSSE(c *gin.Context, payload gin.H) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	c.Writer.WriteString("data: ")
	c.Writer.Write(data)
	c.Writer.WriteString("\n\n")
}

type saveHistoryRequest struct {
	Messages []history.Turn `json:"messages"`
}

func (s *Server) handleGetHistory(c *gin.Context) {
	session := c.DefaultQuery("session", history.DefaultSession)
	c.JSON(http.StatusOK, s.history.Get(c.Request.Context(), session))
}

func (s *Server) handleSaveHistory(c *gin.Context) {
	var req saveHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}

	session := c.DefaultQuery("session", history.DefaultSession)
	s.history.Save(c.Request.Context(), session, req.Messages)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleClearHistory(c *gin.Context) {
	session := c.DefaultQuery("session", history.DefaultSession)
	s.history.Clear(c.Request.Context(), session)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// statusFor maps the error taxonomy onto HTTP statuses: client-input errors
// are 400, backend unavailability is 502, anything else is 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, extract.ErrUnsupportedFormat),
		errors.Is(err, extract.ErrParse),
		errors.Is(err, ingestion.ErrEmptyDocument):
		return http.StatusBadRequest
	case errors.Is(err, knowledge.ErrUnavailable),
		errors.Is(err, embeddings.ErrBackend):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
