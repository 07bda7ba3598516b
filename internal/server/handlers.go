package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"

	"github.com/ironsheep/screenwatch/internal/classify"
	"github.com/ironsheep/screenwatch/internal/engine"
	"github.com/ironsheep/screenwatch/internal/imaging"
	"github.com/ironsheep/screenwatch/internal/prefilter"
	"github.com/ironsheep/screenwatch/internal/similarity"
	"github.com/ironsheep/screenwatch/internal/textnorm"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "screen_analyze_text").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Debug("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	switch name {
	// Pipeline
	case "screen_process_frame":
		return s.handleProcessFrame(ctx, args)
	case "screen_analyze_text":
		return s.handleAnalyzeText(ctx, args)

	// Stateless text helpers
	case "screen_compare_text":
		return s.handleCompareText(args)
	case "screen_normalize_text":
		return s.handleNormalizeText(args)
	case "screen_format_text":
		return s.handleFormatText(args)

	// Image helpers
	case "screen_fingerprint":
		return s.handleFingerprint(args)
	case "screen_ocr":
		return s.handleOCR(args)

	// State
	case "screen_region_status":
		return s.handleRegionStatus(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// loadFrame decodes path from disk and applies the crop. Screenshots are
// rewritten in place, so the cached copy is always refreshed.
func (s *Server) loadFrame(path string, crop imaging.Region) (image.Image, error) {
	if path == "" {
		return nil, errors.New("path is required")
	}
	img, err := s.cache.Reload(path)
	if err != nil {
		return nil, err
	}
	return imaging.CropRegion(img, crop)
}

// === Pipeline Handlers ===

type processFrameArgs struct {
	RegionID string  `json:"region_id"`
	Path     string  `json:"path"`
	Text     *string `json:"text"`
	Language string  `json:"language"`
	imaging.Region
}

type processFrameResult struct {
	Region    string             `json:"region_id"`
	Prefilter prefilter.Decision `json:"prefilter"`
	Analyzed  bool               `json:"analyzed"`
	OCRError  string             `json:"ocr_error,omitempty"`
	Outcome   *engine.Outcome    `json:"outcome,omitempty"`
}

func (s *Server) handleProcessFrame(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a processFrameArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.RegionID == "" {
		return nil, errors.New("region_id is required")
	}
	img, err := s.loadFrame(a.Path, a.Region)
	if err != nil {
		return nil, err
	}

	res := processFrameResult{Region: a.RegionID}
	res.Prefilter = s.engine.PrefilterFrame(a.RegionID, img)
	if !res.Prefilter.Passed() {
		return res, nil
	}

	var text string
	if a.Text != nil {
		text = *a.Text
	} else {
		lang := a.Language
		if lang == "" {
			lang = s.language
		}
		if text, err = s.ocr.ExtractText(ctx, img, lang); err != nil {
			// Analyzed as a cycle without usable text; the frame passes
			// the prefilter again on the next call.
			res.OCRError = err.Error()
			s.engine.RetryFrame(a.RegionID)
			text = ""
		}
	}

	out, err := s.engine.Analyze(ctx, a.RegionID, text, s.now())
	if err != nil {
		return nil, err
	}
	res.Analyzed = true
	res.Outcome = &out
	return res, nil
}

type analyzeTextArgs struct {
	RegionID string `json:"region_id"`
	Text     string `json:"text"`
}

func (s *Server) handleAnalyzeText(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a analyzeTextArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.RegionID == "" {
		return nil, errors.New("region_id is required")
	}
	return s.engine.Analyze(ctx, a.RegionID, a.Text, s.now())
}

// === Text Helper Handlers ===

type compareTextArgs struct {
	Previous string `json:"previous"`
	Current  string `json:"current"`
}

type compareTextResult struct {
	Previous       string            `json:"previous_normalized"`
	Current        string            `json:"current_normalized"`
	Scores         similarity.Scores `json:"scores"`
	Classification classify.Result   `json:"classification"`
}

func (s *Server) handleCompareText(args json.RawMessage) (interface{}, error) {
	var a compareTextArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	cfg := s.engine.Config().Classify

	res := compareTextResult{
		Previous: normalizeUsable(a.Previous),
		Current:  normalizeUsable(a.Current),
	}
	if res.Current == "" {
		return nil, errors.New("current has no usable text")
	}
	res.Scores = similarity.Compare(res.Previous, res.Current)
	res.Classification = classify.New(cfg).Classify(res.Scores, res.Current, nil)
	return res, nil
}

// normalizeUsable returns the normalized form of raw, or "" when raw is
// not usable screen text.
func normalizeUsable(raw string) string {
	cleaned, err := textnorm.Clean(raw)
	if err != nil {
		return ""
	}
	return textnorm.Normalize(cleaned)
}

type textArgs struct {
	Text string `json:"text"`
}

type normalizeTextResult struct {
	Normalized string `json:"normalized_text"`
	Usable     bool   `json:"usable"`
}

func (s *Server) handleNormalizeText(args json.RawMessage) (interface{}, error) {
	var a textArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	n := normalizeUsable(a.Text)
	return normalizeTextResult{Normalized: n, Usable: n != ""}, nil
}

func (s *Server) handleFormatText(args json.RawMessage) (interface{}, error) {
	var a textArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return map[string]string{
		"formatted_text": s.engine.Config().Format.Format(a.Text),
	}, nil
}

// === Image Helper Handlers ===

type fingerprintArgs struct {
	Path        string `json:"path"`
	ComparePath string `json:"compare_path"`
	imaging.Region
}

type fingerprintResult struct {
	Fingerprint string             `json:"fingerprint"`
	Tone        imaging.ToneResult `json:"tone"`
	Compare     *fingerprintDiff   `json:"compare,omitempty"`
}

type fingerprintDiff struct {
	Fingerprint string             `json:"fingerprint"`
	Tone        imaging.ToneResult `json:"tone"`
	Hamming     int                `json:"hamming"`
	Distance    float64            `json:"distance"`
	ToneShift   float64            `json:"tone_shift"`
	Prefilter   prefilter.Verdict  `json:"prefilter"`
}

func (s *Server) handleFingerprint(args json.RawMessage) (interface{}, error) {
	var a fingerprintArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	fp, err := s.fingerprint(a.Path, a.Region)
	if err != nil {
		return nil, err
	}
	res := fingerprintResult{
		Fingerprint: fp.String(),
		Tone:        imaging.DescribeTone(fp.Tone),
	}
	if a.ComparePath == "" {
		return res, nil
	}

	other, err := s.fingerprint(a.ComparePath, a.Region)
	if err != nil {
		return nil, fmt.Errorf("compare_path: %w", err)
	}
	res.Compare = &fingerprintDiff{
		Fingerprint: other.String(),
		Tone:        imaging.DescribeTone(other.Tone),
		Hamming:     fp.Distance(other),
		Distance:    fp.Normalized(other),
		ToneShift:   fp.ToneShift(other),
		Prefilter:   s.engine.Config().Prefilter.Evaluate(&fp, other).Verdict,
	}
	return res, nil
}

func (s *Server) fingerprint(path string, crop imaging.Region) (imaging.Fingerprint, error) {
	img, err := s.loadFrame(path, crop)
	if err != nil {
		return imaging.Fingerprint{}, err
	}
	return imaging.ComputeFingerprint(img)
}

type ocrArgs struct {
	Path     string `json:"path"`
	Language string `json:"language"`
	imaging.Region
}

func (s *Server) handleOCR(args json.RawMessage) (interface{}, error) {
	var a ocrArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	if a.Language == "" {
		a.Language = s.language
	}
	if a.Region.IsZero() {
		return s.ocr.ExtractFile(a.Path, a.Language)
	}
	img, err := s.cache.Reload(a.Path)
	if err != nil {
		return nil, err
	}
	return s.ocr.ExtractRegion(img, a.Region, a.Language)
}

// === State Handlers ===

type regionStatusArgs struct {
	RegionID string `json:"region_id"`
}

func (s *Server) handleRegionStatus(args json.RawMessage) (interface{}, error) {
	var a regionStatusArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.RegionID == "" {
		return map[string]interface{}{"regions": s.engine.Snapshots()}, nil
	}
	snap, err := s.engine.Snapshot(a.RegionID)
	if err != nil {
		return nil, fmt.Errorf("region %q: %w", a.RegionID, err)
	}
	return snap, nil
}
