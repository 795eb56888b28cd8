package model

import "strings"

// UserProfile is the read-only view the eligibility store exposes per user.
// The core never writes to it.
type UserProfile struct {
	ID           string `db:"id" json:"id"`
	Role         Role   `db:"role" json:"role"`
	ChatOptIn    bool   `db:"chat_opt_in" json:"chatOptIn"`
	RecoveryTags string `db:"recovery_tags" json:"recoveryTags"`
}

// HasRecoveredTag reports whether the profile carries the exact tag for the
// given category. Tags are stored comma-separated and unordered.
func (u *UserProfile) HasRecoveredTag(category string) bool {
	want := RecoveredTagPrefix + category
	for _, tag := range strings.Split(u.RecoveryTags, ",") {
		if strings.TrimSpace(tag) == want {
			return true
		}
	}
	return false
}

// HasAnyRecoveredTag reports whether the profile carries at least one
// recovery tag of any category.
func (u *UserProfile) HasAnyRecoveredTag() bool {
	for _, tag := range strings.Split(u.RecoveryTags, ",") {
		if strings.HasPrefix(strings.TrimSpace(tag), RecoveredTagPrefix) {
			return true
		}
	}
	return false
}
