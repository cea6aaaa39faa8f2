// Package sse implements Server-Sent Events for carousel sessions: patches,
// carousel movement and player commands flow to the browser over it.
package sse

import (
	"time"

	"github.com/spotlightapp/spotlight-server/internal/enrichment"
	"github.com/spotlightapp/spotlight-server/internal/video"
)

// The browser talks back over plain HTTP requests; the stream is one-way.

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventSlideRatings appends rating badges to a slide.
	EventSlideRatings EventType = "slide.ratings"
	// EventSlideBadgeUpgraded swaps an existing badge graphic in place.
	EventSlideBadgeUpgraded EventType = "slide.badge_upgraded"
	// EventSlideAwards fills a slide's awards row.
	EventSlideAwards EventType = "slide.awards"

	// EventCarouselIndex reports ring movement and settled indices.
	EventCarouselIndex EventType = "carousel.index"

	// EventVideoCommand carries a command for a browser-side player.
	EventVideoCommand EventType = "video.command"

	// EventSessionRefreshed tells the browser to replace every slide.
	EventSessionRefreshed EventType = "session.refreshed"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
// The Data field contains the event payload as a JSON object for direct deserialization.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// SessionID routes the event to the streams of one session. Empty
	// means every stream.
	SessionID string `json:"-"`
}

// CarouselIndexEventData is the data payload for carousel.index events.
type CarouselIndexEventData struct {
	Position  int  `json:"position"`
	RealIndex int  `json:"real_index"`
	Animate   bool `json:"animate"`
	// Settled is true once the transition ended and RealIndex is current.
	Settled bool `json:"settled"`
}

// SessionRefreshedEventData is the data payload for session.refreshed events.
type SessionRefreshedEventData struct {
	Rendered bool `json:"rendered"`
	Slides   any  `json:"slides"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewRatingsEvent creates a slide.ratings event.
func NewRatingsEvent(sessionID string, p enrichment.RatingsPatch) Event {
	return Event{Type: EventSlideRatings, Data: p, SessionID: sessionID, Timestamp: time.Now()}
}

// NewBadgeUpgradedEvent creates a slide.badge_upgraded event.
func NewBadgeUpgradedEvent(sessionID string, u enrichment.BadgeUpgrade) Event {
	return Event{Type: EventSlideBadgeUpgraded, Data: u, SessionID: sessionID, Timestamp: time.Now()}
}

// NewAwardsEvent creates a slide.awards event.
func NewAwardsEvent(sessionID string, p enrichment.AwardsPatch) Event {
	return Event{Type: EventSlideAwards, Data: p, SessionID: sessionID, Timestamp: time.Now()}
}

// NewCarouselIndexEvent creates a carousel.index event.
func NewCarouselIndexEvent(sessionID string, data CarouselIndexEventData) Event {
	return Event{Type: EventCarouselIndex, Data: data, SessionID: sessionID, Timestamp: time.Now()}
}

// NewVideoCommandEvent creates a video.command event.
func NewVideoCommandEvent(sessionID string, cmd video.Command) Event {
	return Event{Type: EventVideoCommand, Data: cmd, SessionID: sessionID, Timestamp: time.Now()}
}

// NewSessionRefreshedEvent creates a session.refreshed event.
func NewSessionRefreshedEvent(sessionID string, rendered bool, slides any) Event {
	return Event{
		Type:      EventSessionRefreshed,
		Data:      SessionRefreshedEventData{Rendered: rendered, Slides: slides},
		SessionID: sessionID,
		Timestamp: time.Now(),
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type: EventHeartbeat,
		Data: HeartbeatEventData{
			ServerTime: time.Now(),
		},
		Timestamp: time.Now(),
	}
}
