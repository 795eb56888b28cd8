package model

import "time"

// Session is one row of the session ledger. The row id stays internal; the
// session key is the only handle ever handed out.
type Session struct {
	ID               int64         `db:"id" json:"-"`
	SessionKey       string        `db:"session_key" json:"sessionKey"`
	SeekerID         string        `db:"seeker_id" json:"seekerId"`
	HelperID         string        `db:"helper_id" json:"helperId"`
	Status           SessionStatus `db:"status" json:"status"`
	IsExpertFallback bool          `db:"is_expert_fallback" json:"isExpertFallback"`
	CreatedAt        time.Time     `db:"created_at" json:"createdAt"`
	EndedAt          *time.Time    `db:"ended_at" json:"endedAt,omitempty"`
}

func (s *Session) IsParticipant(userID string) bool {
	return s.SeekerID == userID || s.HelperID == userID
}

// PeerOf returns the other participant of the session.
func (s *Session) PeerOf(userID string) string {
	if s.SeekerID == userID {
		return s.HelperID
	}
	return s.SeekerID
}

type CreateSessionParams struct {
	SessionKey       string
	SeekerID         string
	HelperID         string
	IsExpertFallback bool
}
