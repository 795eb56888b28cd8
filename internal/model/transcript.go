package model

import "time"

// TranscriptEntry is one appended row of the external transcript store. A
// human message fills UserMessage; a bot-mediated reply fills SystemResponse
// with UserMessage left null.
type TranscriptEntry struct {
	ID             int64       `db:"id" json:"-"`
	UserID         string      `db:"user_id" json:"userId"`
	SessionType    SessionType `db:"session_type" json:"sessionType"`
	SessionKey     string      `db:"session_key" json:"sessionKey"`
	UserMessage    *string     `db:"user_message" json:"userMessage,omitempty"`
	SystemResponse *string     `db:"system_response" json:"systemResponse,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt"`
}

type AppendTranscriptParams struct {
	UserID         string
	SessionType    SessionType
	SessionKey     string
	UserMessage    *string
	SystemResponse *string
}
