package chathub

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"driftchat/backend/internal/models"

	"github.com/samber/lo"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrInvalidPassword = errors.New("invalid room password")
	ErrAlreadyMember   = errors.New("already a member of this room")
	ErrNotRoomCreator  = errors.New("only the room creator can end the room")
	ErrNotRoomMember   = errors.New("not a member of this room")
	ErrNotInRoom       = errors.New("participant is not in a matched room")
	ErrNotConnected    = errors.New("participant is not connected")
)

// PrivateRooms holds the named, password protected rooms. Membership is an ordered
// set and the room disappears when it empties or its creator ends it.
type PrivateRooms struct {
	rooms    map[models.RoomToken]*models.PrivateRoom
	memberOf map[models.ParticipantID]map[models.RoomToken]struct{}
	sealer   PasswordSealer
	newToken TokenGenerator
	now      func() time.Time
}

func NewPrivateRooms(sealer PasswordSealer, newToken TokenGenerator, now func() time.Time) *PrivateRooms {
	if sealer == nil {
		sealer = PlainPasswords{}
	}
	if newToken == nil {
		newToken = NewUUIDToken
	}
	if now == nil {
		now = time.Now
	}
	return &PrivateRooms{
		rooms:    make(map[models.RoomToken]*models.PrivateRoom),
		memberOf: make(map[models.ParticipantID]map[models.RoomToken]struct{}),
		sealer:   sealer,
		newToken: newToken,
		now:      now,
	}
}

// Create seals password and stores a new room with the creator as its only member.
// A caller-supplied token that is already taken replaces the existing room.
func (r *PrivateRooms) Create(name, password string, creator models.ParticipantID, requested models.RoomToken) (*models.PrivateRoom, error) {
	sealed, err := r.sealer.Seal(password)
	if err != nil {
		return nil, fmt.Errorf("seal room password: %w", err)
	}
	return r.CreateSealed(name, sealed, creator, requested), nil
}

// CreateSealed is Create for a password that has already been sealed.
func (r *PrivateRooms) CreateSealed(name, sealed string, creator models.ParticipantID, requested models.RoomToken) *models.PrivateRoom {
	token := requested
	if token == "" {
		token = r.newToken()
	}
	if old, ok := r.rooms[token]; ok {
		r.drop(old)
	}

	room := &models.PrivateRoom{
		Token:     token,
		Name:      name,
		Creator:   creator,
		Members:   []models.ParticipantID{creator},
		CreatedAt: r.now(),
		Secret:    sealed,
	}
	r.rooms[token] = room
	r.index(creator, token)
	return room
}

// Join adds id to the room. The returned slice holds the members present before id joined.
func (r *PrivateRooms) Join(token models.RoomToken, password string, id models.ParticipantID) (*models.PrivateRoom, []models.ParticipantID, error) {
	room, ok := r.rooms[token]
	if !ok {
		return nil, nil, ErrRoomNotFound
	}
	if !r.sealer.Verify(room.Secret, password) {
		return nil, nil, ErrInvalidPassword
	}
	return r.admit(room, id)
}

// Secret returns the sealed password of the room, for checking it elsewhere.
func (r *PrivateRooms) Secret(token models.RoomToken) (string, error) {
	room, ok := r.rooms[token]
	if !ok {
		return "", ErrRoomNotFound
	}
	return room.Secret, nil
}

// Admit adds id to a room whose password was verified against secret. A room that
// was ended or replaced since then counts as not found.
func (r *PrivateRooms) Admit(token models.RoomToken, secret string, id models.ParticipantID) (*models.PrivateRoom, []models.ParticipantID, error) {
	room, ok := r.rooms[token]
	if !ok || room.Secret != secret {
		return nil, nil, ErrRoomNotFound
	}
	return r.admit(room, id)
}

func (r *PrivateRooms) admit(room *models.PrivateRoom, id models.ParticipantID) (*models.PrivateRoom, []models.ParticipantID, error) {
	if lo.Contains(room.Members, id) {
		return nil, nil, ErrAlreadyMember
	}
	existing := append([]models.ParticipantID(nil), room.Members...)
	room.Members = append(room.Members, id)
	r.index(id, room.Token)
	return room, existing, nil
}

// Sealer returns the password sealer rooms are created with.
func (r *PrivateRooms) Sealer() PasswordSealer { return r.sealer }

// Leave removes id and returns the remaining members. deleted reports whether the
// room was removed because it emptied. Leaving a room one is not in is a no-op.
func (r *PrivateRooms) Leave(token models.RoomToken, id models.ParticipantID) (remaining []models.ParticipantID, deleted bool, err error) {
	room, ok := r.rooms[token]
	if !ok {
		return nil, false, ErrRoomNotFound
	}
	if !lo.Contains(room.Members, id) {
		return nil, false, ErrNotRoomMember
	}

	room.Members = lo.Without(room.Members, id)
	r.unindex(id, token)
	if len(room.Members) == 0 {
		delete(r.rooms, token)
		return nil, true, nil
	}
	return append([]models.ParticipantID(nil), room.Members...), false, nil
}

// End deletes the room if id is its creator and returns everyone who was in it.
func (r *PrivateRooms) End(token models.RoomToken, id models.ParticipantID) ([]models.ParticipantID, error) {
	room, ok := r.rooms[token]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if room.Creator != id {
		return nil, ErrNotRoomCreator
	}
	members := append([]models.ParticipantID(nil), room.Members...)
	r.drop(room)
	return members, nil
}

// Broadcast returns the fan-out list for a message from id, sender included.
func (r *PrivateRooms) Broadcast(token models.RoomToken, id models.ParticipantID) ([]models.ParticipantID, error) {
	room, ok := r.rooms[token]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if !lo.Contains(room.Members, id) {
		return nil, ErrNotRoomMember
	}
	return append([]models.ParticipantID(nil), room.Members...), nil
}

// Get returns the room for token.
func (r *PrivateRooms) Get(token models.RoomToken) (*models.PrivateRoom, bool) {
	room, ok := r.rooms[token]
	return room, ok
}

// RoomsOf lists the rooms id belongs to, sorted by token.
func (r *PrivateRooms) RoomsOf(id models.ParticipantID) []models.RoomToken {
	tokens := lo.Keys(r.memberOf[id])
	sort.Slice(tokens, func(i, j int) bool { return tokens[i] < tokens[j] })
	return tokens
}

// Summaries describes every room, oldest first.
func (r *PrivateRooms) Summaries() []models.PrivateRoomSummary {
	rooms := lo.Values(r.rooms)
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].Token < rooms[j].Token
		}
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return lo.Map(rooms, func(room *models.PrivateRoom, _ int) models.PrivateRoomSummary {
		return models.PrivateRoomSummary{
			Token:     room.Token,
			Name:      room.Name,
			UserCount: len(room.Members),
			Creator:   room.Creator,
		}
	})
}

// Len returns the number of private rooms.
func (r *PrivateRooms) Len() int { return len(r.rooms) }

func (r *PrivateRooms) drop(room *models.PrivateRoom) {
	for _, member := range room.Members {
		r.unindex(member, room.Token)
	}
	delete(r.rooms, room.Token)
}

func (r *PrivateRooms) index(id models.ParticipantID, token models.RoomToken) {
	set, ok := r.memberOf[id]
	if !ok {
		set = make(map[models.RoomToken]struct{})
		r.memberOf[id] = set
	}
	set[token] = struct{}{}
}

func (r *PrivateRooms) unindex(id models.ParticipantID, token models.RoomToken) {
	set, ok := r.memberOf[id]
	if !ok {
		return
	}
	delete(set, token)
	if len(set) == 0 {
		delete(r.memberOf, id)
	}
}
