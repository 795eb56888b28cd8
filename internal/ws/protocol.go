package ws

// Client event names, user -> engine.
const (
	ClientRequestMatch = "request_match"
	ClientCancelMatch  = "cancel_match"
	ClientJoin         = "join"
	ClientSendMessage  = "send_message"
	ClientLeave        = "leave"
)

// ClientEvent is one inbound JSON frame. Fields are a union over the event
// types; Type decides which ones matter.
type ClientEvent struct {
	Type           string  `json:"type"`
	Category       string  `json:"category,omitempty"`
	Anonymous      bool    `json:"anonymous,omitempty"`
	Room           string  `json:"room,omitempty"`
	Text           string  `json:"text,omitempty"`
	SystemResponse *string `json:"systemResponse,omitempty"`
}
