package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ironsheep/screenwatch/internal/engine"
	"github.com/ironsheep/screenwatch/internal/imaging"
	"github.com/ironsheep/screenwatch/internal/ocr"
)

// Recognizer is the OCR backend used by the tools.
type Recognizer interface {
	ExtractText(ctx context.Context, img image.Image, language string) (string, error)
	ExtractFile(path, language string) (*ocr.OCRResult, error)
	ExtractRegion(img image.Image, r imaging.Region, language string) (*ocr.OCRResult, error)
}

// tesseract adapts the ocr package to Recognizer.
type tesseract struct{}

func (tesseract) ExtractText(ctx context.Context, img image.Image, language string) (string, error) {
	return ocr.Tesseract{Language: language}.ExtractText(ctx, img)
}

func (tesseract) ExtractFile(path, language string) (*ocr.OCRResult, error) {
	return ocr.ExtractFile(path, language)
}

func (tesseract) ExtractRegion(img image.Image, r imaging.Region, language string) (*ocr.OCRResult, error) {
	return ocr.ExtractRegion(img, r, language)
}

// Server handles MCP protocol communication
type Server struct {
	cache    *imaging.ImageCache
	engine   *engine.Engine
	ocr      Recognizer
	language string
	version  string
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithRecognizer replaces the Tesseract OCR backend.
func WithRecognizer(r Recognizer) Option {
	return func(s *Server) { s.ocr = r }
}

// WithLanguage sets the default OCR language.
func WithLanguage(lang string) Option {
	return func(s *Server) {
		if lang != "" {
			s.language = lang
		}
	}
}

// WithVersion sets the version reported by initialize.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithLogger sets the logger. Protocol traffic owns stdout, so the logger
// must write elsewhere.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source for analysis cycles.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a new MCP server instance backed by eng. A nil engine gets
// one with default parameters.
func New(eng *engine.Engine, opts ...Option) *Server {
	s := &Server{
		cache:    imaging.NewImageCache(),
		engine:   eng,
		ocr:      tesseract{},
		language: ocr.DefaultLanguage,
		version:  "dev",
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.engine == nil {
		s.engine = engine.New(engine.DefaultConfig(), engine.WithLogger(s.logger))
	}
	return s
}

// Engine returns the engine the tools operate on.
func (s *Server) Engine() *engine.Engine { return s.engine }

// Run serves requests on stdin and writes responses to stdout until stdin
// is closed or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from r and writes responses to
// w.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Warn("failed to parse request", "error", err)
			if err := encoder.Encode(s.errorResponse(nil, -32700, "Parse error", err.Error())); err != nil {
				s.logger.Warn("failed to encode response", "error", err)
			}
			continue
		}

		resp := s.handleRequest(ctx, &req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.logger.Warn("failed to encode response", "error", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "screenwatch",
				"version": s.version,
			},
		},
	}
}
