package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// cropProperties are the optional crop rectangle arguments shared by the
// image tools.
func cropProperties(props map[string]interface{}) map[string]interface{} {
	props["x1"] = map[string]interface{}{
		"type":        "integer",
		"description": "Left edge X coordinate of the crop (0-based). Omit all four to use the whole image.",
	}
	props["y1"] = map[string]interface{}{
		"type":        "integer",
		"description": "Top edge Y coordinate of the crop (0-based)",
	}
	props["x2"] = map[string]interface{}{
		"type":        "integer",
		"description": "Right edge X coordinate of the crop (exclusive)",
	}
	props["y2"] = map[string]interface{}{
		"type":        "integer",
		"description": "Bottom edge Y coordinate of the crop (exclusive)",
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Pipeline
		{
			Name:        "screen_process_frame",
			Description: "Run the full change-detection cycle for a region on a screenshot file: visual prefilter, OCR (unless text is supplied), normalization, similarity, classification and notification throttling. Updates the region's state.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": cropProperties(map[string]interface{}{
					"region_id": map[string]interface{}{
						"type":        "string",
						"description": "Identifier of the watched region",
					},
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the screenshot file",
					},
					"text": map[string]interface{}{
						"type":        "string",
						"description": "Pre-extracted text. When set, OCR is skipped.",
					},
					"language": map[string]interface{}{
						"type":        "string",
						"description": "Tesseract language code (default from configuration, usually 'eng')",
					},
				}),
				"required": []string{"region_id", "path"},
			},
		},
		{
			Name:        "screen_analyze_text",
			Description: "Run the text stages of a cycle for a region: normalization, similarity against the region's baseline, classification and throttling. Updates the region's state.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"region_id": map[string]interface{}{
						"type":        "string",
						"description": "Identifier of the watched region",
					},
					"text": map[string]interface{}{
						"type":        "string",
						"description": "Raw OCR text of the current screen",
					},
				},
				"required": []string{"region_id", "text"},
			},
		},

		// Stateless text helpers
		{
			Name:        "screen_compare_text",
			Description: "Normalize two screen texts and report their similarity scores and change classification. Does not touch any region state.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"previous": map[string]interface{}{
						"type":        "string",
						"description": "Earlier screen text (empty for a first capture)",
					},
					"current": map[string]interface{}{
						"type":        "string",
						"description": "Current screen text",
					},
				},
				"required": []string{"current"},
			},
		},
		{
			Name:        "screen_normalize_text",
			Description: "Strip volatile content (timestamps, counters, spinners, progress indicators) and OCR noise from screen text.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text": map[string]interface{}{
						"type":        "string",
						"description": "Raw OCR text",
					},
				},
				"required": []string{"text"},
			},
		},
		{
			Name:        "screen_format_text",
			Description: "Reflow screen text into readable paragraphs, headings and bullet lists.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text": map[string]interface{}{
						"type":        "string",
						"description": "Normalized screen text",
					},
				},
				"required": []string{"text"},
			},
		},

		// Image helpers
		{
			Name:        "screen_fingerprint",
			Description: "Compute the perceptual fingerprint and mean tone of a screenshot. With compare_path, also report the distance to a second screenshot and whether the prefilter would let it through.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": cropProperties(map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the screenshot file",
					},
					"compare_path": map[string]interface{}{
						"type":        "string",
						"description": "Optional second screenshot, cropped the same way",
					},
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "screen_ocr",
			Description: "Extract text from a screenshot using Tesseract OCR, with word-level bounding boxes.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": cropProperties(map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the screenshot file",
					},
					"language": map[string]interface{}{
						"type":        "string",
						"description": "Tesseract language code (default from configuration, usually 'eng')",
					},
				}),
				"required": []string{"path"},
			},
		},

		// State
		{
			Name:        "screen_region_status",
			Description: "Report the tracked state of one region (baseline text, last change, cooldown, history) or of every region when region_id is omitted.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"region_id": map[string]interface{}{
						"type":        "string",
						"description": "Identifier of the watched region",
					},
				},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
