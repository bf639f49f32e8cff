// Package domain contains core domain types for the PJ companion service.
package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidRole is returned when a message is built with an unknown role.
var ErrInvalidRole = errors.New("invalid message role")

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleSystem carries the persona/instructions and ephemeral context.
	RoleSystem Role = "system"
	// RoleUser is a message typed or spoken by the person chatting.
	RoleUser Role = "user"
	// RoleAssistant is a reply produced by the completion API.
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message is a single conversation entry. It is a value type; copies never
// alias the registry's storage.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewMessage validates the role and returns a Message. Use it when the role
// arrives as data; code that knows the role statically uses SystemMessage,
// UserMessage or AssistantMessage, which cannot produce an invalid role.
func NewMessage(role Role, content string) (Message, error) {
	if !role.Valid() {
		return Message{}, fmt.Errorf("%w: %q", ErrInvalidRole, string(role))
	}
	return Message{Role: role, Content: content}, nil
}

// SystemMessage returns a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage returns a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage returns an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
