package domain

import (
	"encoding/json"
	"time"
)

// EventType names a market lifecycle event.
type EventType string

const (
	EventMarketCreated  EventType = "market_created"
	EventStakePlaced    EventType = "stake_placed"
	EventMarketResolved EventType = "market_resolved"
	EventMarketSettled  EventType = "market_settled"
)

// Bus channel and stream names.
const (
	MarketEventsStream = "stream:market_events"
	MarketChannelAll   = "ch:market:*"
)

// MarketChannel returns the pub/sub channel carrying events for one market.
func MarketChannel(marketID string) string {
	return "ch:market:" + marketID
}

// MarketEvent is the envelope published on the signal bus and streamed to
// websocket clients.
type MarketEvent struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	MarketID   string          `json:"market_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
