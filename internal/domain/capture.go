package domain

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CaptureContext string

const (
	ContextWork     CaptureContext = "work"
	ContextCareer   CaptureContext = "career"
	ContextPersonal CaptureContext = "personal"
	ContextFamily   CaptureContext = "family"
	ContextOther    CaptureContext = "other"

	DefaultCaptureContext = ContextWork
)

// CaptureContexts lists the accepted contexts in display order.
var CaptureContexts = []CaptureContext{ContextWork, ContextCareer, ContextPersonal, ContextFamily, ContextOther}

// ParseCaptureContext maps "" to the default and rejects anything outside the enum.
func ParseCaptureContext(raw string) (CaptureContext, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return DefaultCaptureContext, nil
	}
	for _, c := range CaptureContexts {
		if string(c) == v {
			return c, nil
		}
	}
	return "", fmt.Errorf("invalid context %q", raw)
}

// MaxTopics bounds the topics carried by a capture.
const MaxTopics = 3

// Capture is one reflection owned by a single user. Rows are append-only.
type Capture struct {
	ID        string                      `gorm:"type:varchar(26);primaryKey" json:"id"`
	UserID    string                      `gorm:"not null;index:idx_capture_user_created,priority:1;column:user_id" json:"user_id"`
	TextRaw   string                      `gorm:"type:text;not null;column:text_raw" json:"text_raw"`
	Insight   string                      `gorm:"type:text;not null;default:'';column:insight" json:"insight"`
	Topics    datatypes.JSONSlice[string] `gorm:"column:topics" json:"topics"`
	Tags      datatypes.JSONSlice[string] `gorm:"column:tags" json:"tags"`
	Context   CaptureContext              `gorm:"type:varchar(16);not null;default:'work';column:context" json:"context"`
	CreatedAt int64                       `gorm:"not null;index:idx_capture_user_created,priority:2;column:created_at;autoCreateTime:false" json:"created_at"`
}

func (Capture) TableName() string { return "capture" }

var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewCaptureID returns a lexically sortable id; safe for concurrent use.
func NewCaptureID(now time.Time) string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), idEntropy).String()
}

// BeforeCreate assigns the id; callers never choose it.
func (c *Capture) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = NewCaptureID(time.Now())
	}
	if c.Topics == nil {
		c.Topics = datatypes.JSONSlice[string]{}
	}
	if c.Tags == nil {
		c.Tags = datatypes.JSONSlice[string]{}
	}
	if c.Context == "" {
		c.Context = DefaultCaptureContext
	}
	return nil
}

// BoundTopics trims, drops empties, and keeps at most MaxTopics entries.
func BoundTopics(in []string) []string {
	out := make([]string, 0, MaxTopics)
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, t)
		if len(out) == MaxTopics {
			break
		}
	}
	return out
}
