// Package server implements the MCP (Model Context Protocol) server for the
// screen change-detection tools.
//
// The server speaks JSON-RPC 2.0 over stdio so that an assistant can drive
// the pipeline directly: feed it screenshots or OCR text for named regions,
// inspect what changed, and ask whether the change would have been
// notified.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Pipeline (stateful, per region):
//   - screen_process_frame: prefilter, OCR and analysis of a screenshot
//   - screen_analyze_text: analysis of already-extracted text
//
// Text helpers (stateless):
//   - screen_compare_text: similarity scores and classification of two texts
//   - screen_normalize_text: strip volatile content and OCR noise
//   - screen_format_text: reflow text for display
//
// Image helpers:
//   - screen_fingerprint: perceptual hash, mean tone and frame distance
//   - screen_ocr: Tesseract text with word boxes
//
// State:
//   - screen_region_status: baseline, cooldown and history of regions
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// A cycle whose OCR fails is not a tool error: it is analyzed as a cycle
// without usable text and the OCR error is reported alongside the outcome.
//
// # Usage
//
//	srv := server.New(engine.New(cfg.Stages()), server.WithLanguage("eng"))
//	if err := srv.Run(ctx); err != nil {
//	    return err
//	}
package server
