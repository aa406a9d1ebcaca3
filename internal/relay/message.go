package relay

import (
	"strings"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// ParseRole accepts the singular or plural role name.
func ParseRole(s string) (Role, bool) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s") {
	case string(RoleUser):
		return RoleUser, true
	case string(RoleAgent):
		return RoleAgent, true
	default:
		return "", false
	}
}

const (
	TypeChat         = "chat"
	TypeCaseUpdate   = "case_update"
	TypeNotification = "notification"
	TypeSystem       = "system"
	TypeConfirmation = "confirmation"
	TypeError        = "error"

	senderSystem = "system"
)

// Message is a relay frame. Inbound messages keep every field the client sent;
// the hub only adds its stamps.
type Message map[string]any

func (m Message) str(key string) string {
	v, _ := m[key].(string)
	return v
}

// Type defaults to chat only when the client sent no type at all. A type that
// is not a string comes back empty and so matches no known type.
func (m Message) Type() string {
	v, ok := m["type"]
	if !ok {
		return TypeChat
	}
	t, _ := v.(string)
	return t
}

// route picks the role that receives a message from sender. ok is false for
// message types that are only confirmed, never fanned out.
func route(sender Role, m Message) (Role, bool) {
	switch m.Type() {
	case TypeChat:
		if sender == RoleUser {
			return RoleAgent, true
		}
		target := m.str("target")
		if target == "" || target == "users" {
			return RoleUser, true
		}
		return RoleAgent, true
	case TypeCaseUpdate:
		return RoleAgent, true
	case TypeNotification:
		target := m.str("target_role")
		if target == "" {
			return RoleAgent, true
		}
		return ParseRole(target)
	default:
		return "", false
	}
}
