package audit

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"careportal/internal/models"
)

// Event is one structured security event. Actor is the username (readable in
// log reviews), not the internal id. Meta carries the true failure reason and
// whatever else never goes to the client.
type Event struct {
	Actor     string
	Action    string
	Outcome   string
	IP        string
	UserAgent string
	Meta      map[string]any
}

// Recorder persists events as AuditLog rows and mirrors them to the logger.
// Recording never fails the surrounding request; a write error is logged and
// dropped.
type Recorder struct {
	db *gorm.DB
	lg *zap.SugaredLogger
}

func NewRecorder(db *gorm.DB, lg *zap.SugaredLogger) *Recorder {
	return &Recorder{db: db, lg: lg}
}

func (r *Recorder) Record(ctx context.Context, e Event) {
	md := []byte("{}")
	if len(e.Meta) > 0 {
		if b, err := json.Marshal(e.Meta); err == nil {
			md = b
		}
	}
	row := models.AuditLog{
		Actor:     e.Actor,
		Action:    e.Action,
		Outcome:   e.Outcome,
		IP:        e.IP,
		UserAgent: e.UserAgent,
		Metadata:  models.JSONB(md),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		r.lg.Errorw("audit write failed", "action", e.Action, "error", err)
	}
	r.lg.Infow("audit",
		"actor", e.Actor, "action", e.Action, "outcome", e.Outcome,
		"ip", e.IP, "user_agent", e.UserAgent, "meta", e.Meta)
}
