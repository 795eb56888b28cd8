package model

type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusEnded  SessionStatus = "ended"
)

type Role string

const (
	RoleMember       Role = "member"
	RoleProfessional Role = "professional"
)

type SessionType string

const (
	SessionTypeChat    SessionType = "chat"
	SessionTypeChatbot SessionType = "chatbot"
)

// RecoveredTagPrefix prefixes every recovery tag in the eligibility store,
// e.g. "recovered_anxiety" for the "anxiety" category.
const RecoveredTagPrefix = "recovered_"
