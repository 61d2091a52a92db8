// Package scan fans badge scans from reader devices out to the stations that
// wait for them, over websocket or long-poll.
package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bartime/bartime-api/internal/domain"
	"github.com/bartime/bartime-api/internal/service"
)

var (
	ErrHubStopped     = errors.New("scan hub stopped")
	ErrInvalidStation = errors.New("invalid station")
	ErrInvalidTag     = errors.New("invalid tag id")
)

const subscriberBuffer = 16

type BadgeResolver interface {
	Get(ctx context.Context, associationID uint, tagID string) (domain.BadgeView, error)
}

// Event is one scan as a station sees it. Badge is nil when the tag is not
// paired in the association.
type Event struct {
	Station   string            `json:"station"`
	TagID     string            `json:"tag_id"`
	Known     bool              `json:"known"`
	Badge     *domain.BadgeView `json:"badge,omitempty"`
	ScannedAt time.Time         `json:"scanned_at"`
}

type Subscriber struct {
	key  string
	send chan Event
}

func (s *Subscriber) Events() <-chan Event {
	return s.send
}

type delivery struct {
	key   string
	event Event
}

type Hub struct {
	resolver BadgeResolver

	subscribers map[string]map[*Subscriber]struct{}
	register    chan *Subscriber
	unregister  chan *Subscriber
	broadcast   chan delivery
	done        chan struct{}
}

func NewHub(resolver BadgeResolver) *Hub {
	return &Hub{
		resolver:    resolver,
		subscribers: make(map[string]map[*Subscriber]struct{}),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		broadcast:   make(chan delivery),
		done:        make(chan struct{}),
	}
}

// Run owns the subscriber table until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for _, subs := range h.subscribers {
				for sub := range subs {
					close(sub.send)
				}
			}
			h.subscribers = nil
			return
		case sub := <-h.register:
			if h.subscribers[sub.key] == nil {
				h.subscribers[sub.key] = make(map[*Subscriber]struct{})
			}
			h.subscribers[sub.key][sub] = struct{}{}
		case sub := <-h.unregister:
			if _, ok := h.subscribers[sub.key][sub]; ok {
				delete(h.subscribers[sub.key], sub)
				close(sub.send)
			}
		case d := <-h.broadcast:
			for sub := range h.subscribers[d.key] {
				select {
				case sub.send <- d.event:
				default:
					// Slow subscriber; it reconnects and misses this scan.
					delete(h.subscribers[d.key], sub)
					close(sub.send)
				}
			}
		}
	}
}

func stationKey(associationID uint, station string) string {
	return fmt.Sprintf("%d/%s", associationID, station)
}

// Subscribe registers for the scans of one station.
func (h *Hub) Subscribe(ctx context.Context, associationID uint, station string) (*Subscriber, error) {
	station = strings.TrimSpace(station)
	if station == "" {
		return nil, ErrInvalidStation
	}

	sub := &Subscriber{
		key:  stationKey(associationID, station),
		send: make(chan Event, subscriberBuffer),
	}

	select {
	case h.register <- sub:
		return sub, nil
	case <-h.done:
		return nil, ErrHubStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) Unsubscribe(sub *Subscriber) {
	select {
	case h.unregister <- sub:
	case <-h.done:
	}
}

// Publish resolves a scanned tag and hands it to the station's subscribers.
func (h *Hub) Publish(ctx context.Context, associationID uint, station, tagID string) (Event, error) {
	station, tagID = strings.TrimSpace(station), strings.TrimSpace(tagID)
	if station == "" {
		return Event{}, ErrInvalidStation
	}
	if tagID == "" {
		return Event{}, ErrInvalidTag
	}

	event := Event{
		Station:   station,
		TagID:     tagID,
		ScannedAt: time.Now().UTC(),
	}

	view, err := h.resolver.Get(ctx, associationID, tagID)
	switch {
	case err == nil:
		event.Known = true
		event.Badge = &view
	case !errors.Is(err, service.ErrUnknownBadge):
		return Event{}, fmt.Errorf("h.resolver.Get -> %w", err)
	}

	select {
	case h.broadcast <- delivery{key: stationKey(associationID, station), event: event}:
	case <-h.done:
		return Event{}, ErrHubStopped
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}

	zap.L().Debug("scan published",
		zap.Uint("association_id", associationID),
		zap.String("station", station),
		zap.String("tag_id", tagID),
		zap.Bool("known", event.Known),
	)

	return event, nil
}

// Next waits for the next scan at a station.
func (h *Hub) Next(ctx context.Context, associationID uint, station string) (Event, error) {
	sub, err := h.Subscribe(ctx, associationID, station)
	if err != nil {
		return Event{}, err
	}
	defer h.Unsubscribe(sub)

	select {
	case event, ok := <-sub.send:
		if !ok {
			return Event{}, ErrHubStopped
		}
		return event, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}
