package janitor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ldomjan/sharedcal/internal/rabbit"
	"github.com/ldomjan/sharedcal/internal/storage"
	log "github.com/sirupsen/logrus"
)

// RetentionWindow is how long an ended event stays readable before it
// becomes eligible for pruning.
const RetentionWindow = 7 * 24 * time.Hour

// Stale selects the events whose end time has passed the retention
// window. Pure; deletion is Sweep's job.
func Stale(events []storage.Event, now time.Time, retention time.Duration) []storage.Event {
	cutoff := now.Add(-retention)
	stale := make([]storage.Event, 0)
	for _, e := range events {
		if e.EndTime.Before(cutoff) {
			stale = append(stale, e)
		}
	}
	return stale
}

type Publisher interface {
	Publish(body []byte) error
}

type Janitor struct {
	storage   storage.Storage
	publisher Publisher
	retention time.Duration
}

func New(s storage.Storage, p Publisher, retention time.Duration) *Janitor {
	if retention <= 0 {
		retention = RetentionWindow
	}
	return &Janitor{storage: s, publisher: p, retention: retention}
}

// Sweep removes every event past the retention window and announces
// each removal. Clients never delete on the read path; this is the
// only place stale events leave the store.
func (j *Janitor) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-j.retention)
	removed, err := j.storage.RemoveEndedBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, e := range removed {
		log.Debugf("pruned event %q (%s), ended %s", e.ID, e.Title, e.EndTime)
		m := rabbit.Message{EventID: e.ID, Title: e.Title, OwnerID: e.OwnerID, EndTime: e.EndTime}
		data, _ := json.Marshal(m)
		if err := j.publisher.Publish(data); err != nil {
			log.Errorf("failed to publish removal of %q: %v", e.ID, err)
		}
	}
	if len(removed) > 0 {
		log.Infof("janitor pruned %d events", len(removed))
	}
	return nil
}
