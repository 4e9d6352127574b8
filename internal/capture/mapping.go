package capture

import (
	"encoding/json"
	"time"

	"github.com/yungbote/mindtrail-backend/internal/client"
	"github.com/yungbote/mindtrail-backend/internal/domain"
	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
)

// Item is a capture ready for display.
type Item struct {
	ID        string
	TextRaw   string
	Insight   string
	Topics    []string
	Tags      []string
	Context   domain.CaptureContext
	CreatedAt int64
}

// MapDocuments normalizes wire documents. Unrecognized timestamps fall back to
// now with a warning; tags that are not a string array become empty.
func MapDocuments(log *logger.Logger, docs []client.Document, now time.Time) []Item {
	if log == nil {
		log = logger.Nop()
	}
	items := make([]Item, 0, len(docs))
	for _, d := range docs {
		ts := ParseTimestamp(d.CreatedAt)
		createdAt, ok := ts.Resolve(now)
		if !ok {
			log.Warn("capture_timestamp_fallback", "capture_id", d.ID, "raw", string(d.CreatedAt))
		}

		ctxVal, err := domain.ParseCaptureContext(d.Context)
		if err != nil {
			ctxVal = domain.DefaultCaptureContext
		}

		topics := d.Topics
		if topics == nil {
			topics = []string{}
		}

		items = append(items, Item{
			ID:        d.ID,
			TextRaw:   d.TextRaw,
			Insight:   d.Insight,
			Topics:    topics,
			Tags:      decodeTags(d.Tags),
			Context:   ctxVal,
			CreatedAt: createdAt,
		})
	}
	return items
}

func decodeTags(raw json.RawMessage) []string {
	var tags []string
	if len(raw) == 0 || json.Unmarshal(raw, &tags) != nil || tags == nil {
		return []string{}
	}
	return tags
}
