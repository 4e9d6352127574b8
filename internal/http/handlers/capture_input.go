package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	types "github.com/yungbote/mindtrail-backend/internal/domain"
)

var errTextRequired = errors.New("text is required")

type captureRequest struct {
	Text    string          `json:"text"`
	TextRaw string          `json:"text_raw"`
	Context string          `json:"context"`
	Tags    json.RawMessage `json:"tags"`
}

type captureInput struct {
	Text    string
	Context types.CaptureContext
	Tags    []string
}

// readCaptureInput never fails on transport: an unreadable or malformed body
// is treated as empty, which then fails validation.
func readCaptureInput(body io.Reader) (captureInput, error) {
	var req captureRequest
	if body != nil {
		if raw, err := io.ReadAll(body); err == nil {
			if jerr := json.Unmarshal(raw, &req); jerr != nil {
				req = captureRequest{}
			}
		}
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		text = strings.TrimSpace(req.TextRaw)
	}
	if text == "" {
		return captureInput{}, errTextRequired
	}
	ctxValue, err := types.ParseCaptureContext(req.Context)
	if err != nil {
		return captureInput{}, err
	}
	return captureInput{Text: text, Context: ctxValue, Tags: normalizeTags(req.Tags)}, nil
}

// normalizeTags keeps string entries of a JSON array, trimmed and de-duplicated.
func normalizeTags(raw json.RawMessage) []string {
	out := []string{}
	if len(raw) == 0 {
		return out
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return out
	}
	seen := map[string]bool{}
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
