package broker

// Payloads for the real-time channel events.

// MatchPayload accompanies match_found and match_assigned; Room is the opaque
// session key both parties join with.
type MatchPayload struct {
	Room string `json:"room"`
}

type ReasonPayload struct {
	Reason string `json:"reason"`
}

type MessagePayload struct {
	Text   string `json:"text"`
	Sender string `json:"sender"`
}

type RoomPayload struct {
	Room string `json:"room"`
}

type RoomErrorPayload struct {
	Message string `json:"message"`
}
