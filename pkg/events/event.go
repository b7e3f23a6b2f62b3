package events

import "github.com/kochj23/webmush/pkg/gamedb"

// EventType classifies events for transport-specific encoding.
type EventType int

const (
	EvText       EventType = iota // raw text (universal fallback)
	EvSay                         // speech
	EvPose                        // pose/emote
	EvPage                        // private message
	EvRoom                        // room description
	EvMove                        // arrive/depart
	EvConnect                     // player connected
	EvDisconnect                  // player disconnected
	EvEmit                        // @pemit / @emit output
	EvWho                         // WHO data
	EvTrigger                     // attribute trigger fired
)

// String returns a human-readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EvText:
		return "text"
	case EvSay:
		return "say"
	case EvPose:
		return "pose"
	case EvPage:
		return "page"
	case EvRoom:
		return "room"
	case EvMove:
		return "move"
	case EvConnect:
		return "connect"
	case EvDisconnect:
		return "disconnect"
	case EvEmit:
		return "emit"
	case EvWho:
		return "who"
	case EvTrigger:
		return "trigger"
	default:
		return "unknown"
	}
}

// Event is a structured game event that flows through the event bus.
// Transports decide how to encode each event: the WebSocket gateway
// sends the structured form, logging subscribers use Text.
type Event struct {
	Type   EventType
	Player gamedb.DBRef   // recipient (Nothing for broadcast)
	Source gamedb.DBRef   // who generated the event
	Room   gamedb.DBRef   // room context
	Text   string         // pre-formatted text
	Data   map[string]any // structured data for JSON clients
}
