package models

import (
	"encoding/json"
	"time"
)

// ChatMessage is the envelope exchanged with every gateway, in both directions.
// Payload is opaque to the hub for relayed messages (chat text, WebRTC signaling).
type ChatMessage struct {
	Type     string          `json:"type"`
	SenderID ParticipantID   `json:"sender_id,omitempty"`
	RoomID   RoomToken       `json:"room_id,omitempty"`
	Content  string          `json:"content,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Inbound message types.
const (
	TypeJoinQueue      = "join_queue"
	TypeJoinTextQueue  = "join_text_queue"
	TypeJoinVideoQueue = "join_video_queue"
	TypeLeaveQueue     = "leave_queue"
	TypeStopChat       = "stop_chat"
	TypeNextPartner    = "next_partner"
	TypeCreateRoom     = "create_room"
	TypeJoinRoom       = "join_room"
	TypeLeaveRoom      = "leave_room"
	TypeEndRoom        = "end_room"
	TypeReport         = "report"
)

// Types used in both directions: relayed unmodified between peers.
const (
	TypeTextMessage  = "text_message"
	TypeWebRTCSignal = "webrtc_signal"
	TypeRoomMessage  = "room_message"
)

// Outbound message types.
const (
	TypePartnerFound        = "partner_found"
	TypePartnerDisconnected = "partner_disconnected"
	TypeLookingForPartner   = "looking_for_partner"
	TypeUserJoinedQueue     = "user_joined_queue"
	TypeNoUsersInQueue      = "no_users_in_queue"
	TypeUsersInOtherQueue   = "users_in_other_queue"
	TypeNoUsersAvailable    = "no_users_available"
	TypeQueueTimeout        = "queue_timeout"
	TypeRoomCreated         = "room_created"
	TypeRoomJoined          = "room_joined"
	TypeRoomConnected       = "room_connected"
	TypeRoomError           = "room_error"
	TypeUserJoinedRoom      = "user_joined_room"
	TypeUserLeftRoom        = "user_left_room"
	TypeRoomEnded           = "room_ended"
	TypeUserCountUpdate     = "user_count_update"
	TypeAnnouncement        = "system_announcement"
	TypeError               = "error"
)

// JoinQueueRequest is the payload of join_queue.
type JoinQueueRequest struct {
	ChatType ChatType `json:"chat_type"`
	Metadata
}

// CreateRoomRequest is the payload of create_room. RoomID is optional.
type CreateRoomRequest struct {
	RoomName string    `json:"room_name"`
	Password string    `json:"password"`
	RoomID   RoomToken `json:"room_id,omitempty"`
}

// JoinRoomRequest is the payload of join_room.
type JoinRoomRequest struct {
	RoomID   RoomToken `json:"room_id"`
	Password string    `json:"password"`
}

// RoomRef is the payload of leave_room, end_room and room_message.
type RoomRef struct {
	RoomID RoomToken `json:"room_id"`
}

// ReportRequest is the payload of report.
type ReportRequest struct {
	Reason string `json:"reason"`
}

// PartnerFound tells each side of a new pairing which room it is in.
// IsInitiator only decides who sends the first WebRTC offer.
type PartnerFound struct {
	RoomID      RoomToken `json:"room_id"`
	Type        ChatType  `json:"type"`
	IsInitiator bool      `json:"is_initiator"`
}

type LookingForPartner struct {
	Type          ChatType `json:"type"`
	QueuePosition int      `json:"queue_position"`
}

type QueueSize struct {
	QueueSize int `json:"queue_size"`
}

type CrossQueueHint struct {
	AlternativeType ChatType `json:"alternative_type"`
	AlternativeSize int      `json:"alternative_queue_size"`
}

type RoomInfo struct {
	RoomID   RoomToken `json:"room_id"`
	RoomName string    `json:"room_name"`
}

type RoomError struct {
	Reason string `json:"reason"`
}

type RoomMember struct {
	RoomID RoomToken     `json:"room_id"`
	UserID ParticipantID `json:"user_id"`
}

type UserCount struct {
	Online int `json:"online"`
}

// Room error reasons surfaced to participants.
const (
	ReasonRoomNotFound    = "room_not_found"
	ReasonInvalidPassword = "invalid_password"
	ReasonAlreadyMember   = "already_member"
	ReasonBadRequest      = "bad_request"
	ReasonNotInRoom       = "not_in_room"
	ReasonUnknownType     = "unknown_type"
	ReasonBusy            = "busy"
)

// LifecycleEvent is emitted by the hub for the analytics pipeline.
type LifecycleEvent struct {
	Kind      string          `json:"kind"`
	RoomID    RoomToken       `json:"room_id,omitempty"`
	ChatType  ChatType        `json:"chat_type,omitempty"`
	Members   []ParticipantID `json:"members,omitempty"`
	Interests []string        `json:"shared_interests,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	At        time.Time       `json:"at"`
	Duration  time.Duration   `json:"duration,omitempty"`
}

const (
	EventRoomOpened  = "room_opened"
	EventRoomClosed  = "room_closed"
	EventReportFiled = "report_filed"
)

// NewPayloadMessage builds an outbound message with a JSON payload.
func NewPayloadMessage(msgType string, room RoomToken, payload any) ChatMessage {
	msg := ChatMessage{Type: msgType, RoomID: room}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			msg.Payload = raw
		}
	}
	return msg
}
