// Package types provides core types shared across the mallchat packages.
// This package has ZERO dependencies on other mallchat packages to avoid
// circular imports. All other packages should import types from here.
package types

import "time"

// Role represents the role of a conversation participant.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn represents one utterance in a conversation, either side.
type Turn struct {
	Role         Role      `json:"role"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
	Intent       Intent    `json:"intent,omitempty"`
	Entities     Entities  `json:"entities,omitempty"`
	ToolsInvoked []string  `json:"tools_invoked,omitempty"`
}

// NewUserTurn creates a user turn carrying the classified intent and entities.
func NewUserTurn(content string, intent Intent, entities Entities) Turn {
	return Turn{
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
		Intent:    intent,
		Entities:  entities,
	}
}

// NewAssistantTurn creates an assistant turn recording which tools produced it.
func NewAssistantTurn(content string, toolsInvoked []string) Turn {
	return Turn{
		Role:         RoleAssistant,
		Content:      content,
		Timestamp:    time.Now(),
		ToolsInvoked: toolsInvoked,
	}
}

// Exchange is one completed user/assistant pair.
type Exchange struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}
