// Package mailman defines the enum values Mailman 3 persists as integers in
// PostgreSQL. The values come from the IntEnums in the Mailman source and only
// change with a database migration; if a lookup ever misses, the raw code is
// passed through as its decimal string so new values never break a scrape.
package mailman

import "strconv"

// MemberRole values, src/mailman/interfaces/member.py.
const (
	RoleMember    = 1
	RoleOwner     = 2
	RoleModerator = 3
	RoleNonmember = 4
)

// RequestType values, src/mailman/interfaces/requests.py.
const (
	RequestHeldMessage    = 1
	RequestSubscription   = 2
	RequestUnsubscription = 3
)

var roleNames = map[int64]string{
	RoleMember:    "member",
	RoleOwner:     "owner",
	RoleModerator: "moderator",
	RoleNonmember: "nonmember",
}

var requestTypeNames = map[int64]string{
	RequestHeldMessage:    "held_message",
	RequestSubscription:   "subscription",
	RequestUnsubscription: "unsubscription",
}

// RoleName returns the canonical name for a membership role code.
func RoleName(code int64) string {
	if name, ok := roleNames[code]; ok {
		return name
	}
	return strconv.FormatInt(code, 10)
}

// RequestTypeName returns the canonical name for a moderation request type code.
func RequestTypeName(code int64) string {
	if name, ok := requestTypeNames[code]; ok {
		return name
	}
	return strconv.FormatInt(code, 10)
}
