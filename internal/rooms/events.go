package rooms

import (
	"encoding/json"

	"github.com/MrSnakeDoc/roomrouter/internal/domain"
)

// Wire message types exchanged with websocket clients.
const (
	TypeUserJoined = "userJoined"
	TypeUserLeft   = "userLeft"
	TypeWelcome    = "welcome"
	TypeUserList   = "userList"
	TypeChat       = "chat"
)

type userJoined struct {
	Type string         `json:"type"`
	User domain.Profile `json:"user"`
}

type userLeft struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type welcome struct {
	Type     string `json:"type"`
	ServerID string `json:"serverId"`
	RoomID   string `json:"roomId"`
	Message  string `json:"message"`
}

type userList struct {
	Type string           `json:"type"`
	Data []domain.Profile `json:"data"`
}

type chat struct {
	Type string `json:"type"`
	From string `json:"from"`
	Text string `json:"text"`
}

func joinedEvent(p domain.Profile) []byte { return encode(userJoined{Type: TypeUserJoined, User: p}) }
func leftEvent(userID string) []byte      { return encode(userLeft{Type: TypeUserLeft, UserID: userID}) }

// WelcomeMessage is sent to a connection right after it joined.
func WelcomeMessage(serverID, roomID string) []byte {
	return encode(welcome{
		Type:     TypeWelcome,
		ServerID: serverID,
		RoomID:   roomID,
		Message:  "Connected to server " + serverID,
	})
}

// UserListMessage answers a getAllUsers request.
func UserListMessage(members []domain.Profile) []byte {
	return encode(userList{Type: TypeUserList, Data: members})
}

// ChatMessage wraps a text frame for broadcast.
func ChatMessage(from, text string) []byte {
	return encode(chat{Type: TypeChat, From: from, Text: text})
}

// encode cannot fail for the fixed message structs above.
func encode(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
