package chathub

import (
	"errors"
	"sort"
	"time"

	"driftchat/backend/internal/analysis"
	"driftchat/backend/internal/models"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Notifier delivers an outbound message to one participant. It reports false when
// the participant can no longer be reached.
type Notifier interface {
	Notify(to models.ParticipantID, msg models.ChatMessage) bool
}

// EventSink receives lifecycle events for analytics. Emit must not block.
type EventSink interface {
	Emit(event models.LifecycleEvent)
}

// EngineOptions configures an Engine. Zero values fall back to defaults.
type EngineOptions struct {
	ProfileRetention time.Duration
	MaxProfiles      int
	// MaxQueueWait <= 0 lets participants wait until matched or until they leave.
	MaxQueueWait time.Duration
	Sealer       PasswordSealer
	NewToken     TokenGenerator
	Now          func() time.Time
	Events       EventSink
	ReportWeight func(reason string) float64
}

// Engine is the matchmaking and room-coordination core. It is not safe for
// concurrent use: ManagerService.Run is its only caller.
type Engine struct {
	Registry *Registry
	Queues   *QueueManager
	Matcher  *MatcherService
	Rooms    *RoomCoordinator
	Private  *PrivateRooms

	notifier     Notifier
	events       EventSink
	reportWeight func(string) float64
	maxQueueWait time.Duration
	now          func() time.Time
	log          *logrus.Entry

	connected map[models.ParticipantID]struct{}
	metadata  map[models.ParticipantID]models.Metadata
	metrics   models.Metrics
}

func NewEngine(notifier Notifier, opts EngineOptions) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	weight := opts.ReportWeight
	if weight == nil {
		weight = analysis.GetWeight
	}

	registry := NewRegistry(opts.ProfileRetention, opts.MaxProfiles, now)
	queues := NewQueueManager(now)
	e := &Engine{
		Registry:     registry,
		Queues:       queues,
		Matcher:      NewMatcherService(queues, registry, now),
		Rooms:        NewRoomCoordinator(opts.NewToken, now),
		Private:      NewPrivateRooms(opts.Sealer, opts.NewToken, now),
		notifier:     notifier,
		events:       opts.Events,
		reportWeight: weight,
		maxQueueWait: opts.MaxQueueWait,
		now:          now,
		log:          logrus.WithField("component", "engine"),
		connected:    make(map[models.ParticipantID]struct{}),
		metadata:     make(map[models.ParticipantID]models.Metadata),
	}
	registry.SetPinned(e.active)
	return e
}

func (e *Engine) active(id models.ParticipantID) bool {
	if _, ok := e.connected[id]; ok {
		return true
	}
	if _, ok := e.Queues.Waiting(id); ok {
		return true
	}
	_, ok := e.Rooms.RoomOf(id)
	return ok
}

// Connect registers a new connection and creates its behaviour profile.
func (e *Engine) Connect(id models.ParticipantID) {
	e.connected[id] = struct{}{}
	e.Registry.GetOrCreateProfile(id)
	e.log.WithField("participant_id", id).Info("Participant connected")
	e.broadcastOnline()
}

// Disconnect removes id from queues, matched rooms and private rooms.
func (e *Engine) Disconnect(id models.ParticipantID) {
	if !e.active(id) && len(e.Private.RoomsOf(id)) == 0 {
		return
	}
	e.Queues.Dequeue(id)
	e.closeMatchedRoom(id, Disconnected)
	e.Registry.RecordEvent(id, Disconnected)

	for _, token := range e.Private.RoomsOf(id) {
		if err := e.LeaveRoom(id, token); err != nil {
			e.log.WithError(err).WithField("room_token", token).Debug("Leave on disconnect failed")
		}
	}

	delete(e.connected, id)
	delete(e.metadata, id)
	e.log.WithField("participant_id", id).Info("Participant disconnected")
	e.broadcastOnline()
}

// JoinQueue enqueues id for t and runs a matching attempt. Joining while in a
// matched room ends that room first.
func (e *Engine) JoinQueue(id models.ParticipantID, t models.ChatType, meta models.Metadata) {
	if !t.Valid() {
		e.reject(id, models.ReasonBadRequest)
		return
	}
	if e.closeMatchedRoom(id, Disconnected) {
		e.Registry.RecordEvent(id, Disconnected)
	}
	e.metadata[id] = meta
	e.enqueue(id, t, meta, false)
}

func (e *Engine) enqueue(id models.ParticipantID, t models.ChatType, meta models.Metadata, rejoining bool) {
	e.Registry.GetOrCreateProfile(id)
	e.Queues.Enqueue(models.Participant{
		ID:        id,
		ChatType:  t,
		Rejoining: rejoining,
		Metadata:  meta,
	})

	result := e.Matcher.Attempt(id, t)
	if result.Failed {
		e.metrics.FailedPairings++
	}

	switch result.Outcome {
	case Paired:
		e.openMatchedRoom(result, t)
		return
	case CrossQueue:
		e.notify(id, models.NewPayloadMessage(models.TypeNoUsersInQueue, "", models.CrossQueueHint{
			AlternativeType: result.AlternateType,
			AlternativeSize: result.AlternateSize,
		}))
	case NoUsers:
		e.notify(id, models.ChatMessage{Type: models.TypeNoUsersAvailable})
	case Waiting:
		e.notify(id, models.NewPayloadMessage(models.TypeLookingForPartner, "", models.LookingForPartner{
			Type:          t,
			QueuePosition: result.QueueSize,
		}))
	}
	e.notifyWaiters(id, t)
}

// notifyWaiters tells the rest of queue t that it grew, and the other queue that
// people are waiting in t.
func (e *Engine) notifyWaiters(joined models.ParticipantID, t models.ChatType) {
	primary := e.Queues.Queue(t)
	size := primary.Len()
	for _, other := range primary.IDs() {
		if other == joined {
			continue
		}
		e.notify(other, models.NewPayloadMessage(models.TypeUserJoinedQueue, "", models.QueueSize{QueueSize: size}))
	}
	for _, other := range e.Queues.Queue(t.Opposite()).IDs() {
		e.notify(other, models.NewPayloadMessage(models.TypeUsersInOtherQueue, "", models.CrossQueueHint{
			AlternativeType: t,
			AlternativeSize: size,
		}))
	}
}

func (e *Engine) openMatchedRoom(result MatchResult, t models.ChatType) {
	initiator, receiver := result.Initiator, result.Receiver
	room := e.Rooms.Open(t, initiator.ID, receiver.ID, SharedInterests(initiator.Metadata, receiver.Metadata))

	wait := e.now().Sub(initiator.JoinTime)
	e.metrics.TotalPairings++
	e.metrics.SuccessfulPairings++
	e.metrics.AverageWaitTimeMs = (e.metrics.AverageWaitTimeMs + float64(wait.Milliseconds())) / 2

	e.notify(initiator.ID, models.NewPayloadMessage(models.TypePartnerFound, room.Token, models.PartnerFound{
		RoomID: room.Token, Type: t, IsInitiator: true,
	}))
	e.notify(receiver.ID, models.NewPayloadMessage(models.TypePartnerFound, room.Token, models.PartnerFound{
		RoomID: room.Token, Type: t, IsInitiator: false,
	}))

	e.emit(models.LifecycleEvent{
		Kind:      models.EventRoomOpened,
		RoomID:    room.Token,
		ChatType:  t,
		Members:   room.Members[:],
		Interests: room.SharedInterests,
		At:        room.CreatedAt,
	})
}

// LeaveQueue removes id from both queues. It is a no-op for unqueued participants.
func (e *Engine) LeaveQueue(id models.ParticipantID) {
	if e.Queues.Dequeue(id) {
		e.log.WithField("participant_id", id).Debug("Left queue")
	}
}

// StopChat leaves the queue and tears down the matched room, if any. Without a
// matched room it only dequeues, so repeating it costs no reputation.
func (e *Engine) StopChat(id models.ParticipantID) {
	e.Queues.Dequeue(id)
	if e.closeMatchedRoom(id, Disconnected) {
		e.Registry.RecordEvent(id, Disconnected)
	}
}

// RequestNextPartner tears down id's matched room and re-enqueues id into the
// same chat type. It returns ErrNotInRoom when id has no matched room.
func (e *Engine) RequestNextPartner(id models.ParticipantID) error {
	room, ok := e.Rooms.RoomOf(id)
	if !ok {
		return ErrNotInRoom
	}
	t := room.ChatType
	peer, _ := room.Peer(id)

	e.closeMatchedRoom(id, SkippedBySelf)
	e.Registry.RecordEvent(id, SkippedBySelf)
	e.Registry.RecordEvent(peer, SkippedByPeer)

	e.enqueue(id, t, e.metadata[id], true)
	return nil
}

// NextPartner handles next_partner. Without a matched room it only logs.
func (e *Engine) NextPartner(id models.ParticipantID) {
	if err := e.RequestNextPartner(id); err != nil {
		e.log.WithField("participant_id", id).WithError(err).Debug("Next partner ignored")
	}
}

// closeMatchedRoom deletes id's matched room and tells the peer. Reputation for
// the caller is recorded by the operation that triggered the close.
func (e *Engine) closeMatchedRoom(id models.ParticipantID, cause BehaviorEvent) bool {
	room, peer, ok := e.Rooms.Teardown(id)
	if !ok {
		return false
	}
	duration := e.now().Sub(room.CreatedAt)
	e.Registry.RecordChatDuration(id, duration)
	e.Registry.RecordChatDuration(peer, duration)

	e.notify(peer, models.ChatMessage{Type: models.TypePartnerDisconnected, RoomID: room.Token})

	e.log.WithFields(logrus.Fields{
		"room_token":     room.Token,
		"participant_id": id,
		"peer":           peer,
		"cause":          cause.String(),
	}).Info("Matched room closed")

	e.emit(models.LifecycleEvent{
		Kind:     models.EventRoomClosed,
		RoomID:   room.Token,
		ChatType: room.ChatType,
		Members:  room.Members[:],
		Reason:   cause.String(),
		At:       e.now(),
		Duration: duration,
	})
	return true
}

// Teardown ends id's matched room as a disconnect. It reports whether a room existed.
func (e *Engine) Teardown(id models.ParticipantID) bool {
	if !e.closeMatchedRoom(id, Disconnected) {
		return false
	}
	e.Registry.RecordEvent(id, Disconnected)
	return true
}

// ChatMessage relays a text payload to id's peer.
func (e *Engine) ChatMessage(id models.ParticipantID, msg models.ChatMessage) error {
	msg.Type = models.TypeTextMessage
	return e.relay(id, msg)
}

// Signal relays an opaque WebRTC signaling payload to id's peer.
func (e *Engine) Signal(id models.ParticipantID, msg models.ChatMessage) error {
	msg.Type = models.TypeWebRTCSignal
	return e.relay(id, msg)
}

func (e *Engine) relay(id models.ParticipantID, msg models.ChatMessage) error {
	peer, msg, ok := e.Rooms.Relay(id, msg)
	if !ok {
		e.log.WithFields(logrus.Fields{"participant_id": id, "type": msg.Type}).Debug("Relay outside a matched room dropped")
		return ErrNotInRoom
	}

	if !e.notify(peer, msg) {
		// unreachable peer counts as a disconnect
		e.closeMatchedRoom(peer, Disconnected)
		e.Registry.RecordEvent(peer, Disconnected)
	}
	return nil
}

// CreateRoom creates a private room with id as creator.
func (e *Engine) CreateRoom(id models.ParticipantID, req models.CreateRoomRequest) (models.RoomToken, error) {
	room, err := e.Private.Create(req.RoomName, req.Password, id, req.RoomID)
	if err != nil {
		e.log.WithError(err).WithField("participant_id", id).Error("Failed to create room")
		e.reject(id, models.ReasonBadRequest)
		return "", err
	}
	e.roomCreated(id, room)
	return room.Token, nil
}

// CreateSealedRoom finishes a create_room whose password was sealed off the hub
// goroutine. It does nothing for a participant that has disconnected meanwhile.
func (e *Engine) CreateSealedRoom(id models.ParticipantID, req models.CreateRoomRequest, sealed string) (models.RoomToken, error) {
	if _, ok := e.connected[id]; !ok {
		return "", ErrNotConnected
	}
	room := e.Private.CreateSealed(req.RoomName, sealed, id, req.RoomID)
	e.roomCreated(id, room)
	return room.Token, nil
}

func (e *Engine) roomCreated(id models.ParticipantID, room *models.PrivateRoom) {
	info := models.RoomInfo{RoomID: room.Token, RoomName: room.Name}
	e.notify(id, models.NewPayloadMessage(models.TypeRoomCreated, room.Token, info))
	e.notify(id, models.ChatMessage{Type: models.TypeRoomConnected, RoomID: room.Token})

	e.log.WithFields(logrus.Fields{"room_token": room.Token, "creator": id}).Info("Private room created")
}

// JoinRoom adds id to a private room after checking the password.
func (e *Engine) JoinRoom(id models.ParticipantID, req models.JoinRoomRequest) error {
	room, existing, err := e.Private.Join(req.RoomID, req.Password, id)
	if err != nil {
		e.roomError(id, req.RoomID, err)
		return err
	}
	e.roomJoined(id, room, existing)
	return nil
}

// RoomSecret looks up the sealed password of a room id wants to join, so it can
// be verified off the hub goroutine. An unknown room is rejected here.
func (e *Engine) RoomSecret(id models.ParticipantID, token models.RoomToken) (string, error) {
	secret, err := e.Private.Secret(token)
	if err != nil {
		e.roomError(id, token, err)
		return "", err
	}
	return secret, nil
}

// AdmitToRoom finishes a join_room whose password check against secret ran off the
// hub goroutine.
func (e *Engine) AdmitToRoom(id models.ParticipantID, token models.RoomToken, secret string, verified bool) error {
	if _, ok := e.connected[id]; !ok {
		return ErrNotConnected
	}
	if !verified {
		e.roomError(id, token, ErrInvalidPassword)
		return ErrInvalidPassword
	}
	room, existing, err := e.Private.Admit(token, secret, id)
	if err != nil {
		e.roomError(id, token, err)
		return err
	}
	e.roomJoined(id, room, existing)
	return nil
}

func (e *Engine) roomJoined(id models.ParticipantID, room *models.PrivateRoom, existing []models.ParticipantID) {
	info := models.RoomInfo{RoomID: room.Token, RoomName: room.Name}
	e.notify(id, models.NewPayloadMessage(models.TypeRoomJoined, room.Token, info))
	e.notify(id, models.ChatMessage{Type: models.TypeRoomConnected, RoomID: room.Token})

	joined := models.NewPayloadMessage(models.TypeUserJoinedRoom, room.Token, models.RoomMember{RoomID: room.Token, UserID: id})
	for _, member := range existing {
		e.notify(member, joined)
	}
}

// LeaveRoom removes id from a private room. Leaving a room one is not in is a
// no-op; an unknown room is rejected with room_error.
func (e *Engine) LeaveRoom(id models.ParticipantID, token models.RoomToken) error {
	remaining, deleted, err := e.Private.Leave(token, id)
	if errors.Is(err, ErrRoomNotFound) {
		e.roomError(id, token, err)
		return err
	}
	if err != nil {
		e.log.WithFields(logrus.Fields{"participant_id": id, "room_token": token}).WithError(err).Debug("Leave room ignored")
		return err
	}

	left := models.NewPayloadMessage(models.TypeUserLeftRoom, token, models.RoomMember{RoomID: token, UserID: id})
	for _, member := range remaining {
		e.notify(member, left)
	}
	if deleted {
		e.log.WithField("room_token", token).Info("Private room deleted (empty)")
	}
	return nil
}

// EndRoom deletes a private room on behalf of its creator. Anyone else gets a
// logged no-op.
func (e *Engine) EndRoom(id models.ParticipantID, token models.RoomToken) error {
	members, err := e.Private.End(token, id)
	switch {
	case errors.Is(err, ErrNotRoomCreator):
		e.log.WithFields(logrus.Fields{"participant_id": id, "room_token": token}).Warn("Non-creator tried to end room")
		return err
	case err != nil:
		e.roomError(id, token, err)
		return err
	}

	ended := models.ChatMessage{Type: models.TypeRoomEnded, RoomID: token}
	for _, member := range members {
		e.notify(member, ended)
	}
	e.log.WithFields(logrus.Fields{"room_token": token, "creator": id}).Info("Private room ended")
	return nil
}

// RoomMessage fans msg out to every member of the room, sender included.
// Non-members are dropped silently.
func (e *Engine) RoomMessage(id models.ParticipantID, token models.RoomToken, msg models.ChatMessage) error {
	members, err := e.Private.Broadcast(token, id)
	if err != nil {
		e.log.WithFields(logrus.Fields{"participant_id": id, "room_token": token}).WithError(err).Warn("Room message dropped")
		return err
	}
	msg.Type = models.TypeRoomMessage
	msg.SenderID = id
	msg.RoomID = token
	for _, member := range members {
		e.notify(member, msg)
	}
	return nil
}

// Report files a report against id's current matched peer.
func (e *Engine) Report(id models.ParticipantID, reason string) error {
	room, ok := e.Rooms.RoomOf(id)
	if !ok {
		e.reject(id, models.ReasonNotInRoom)
		return ErrNotInRoom
	}
	peer, _ := room.Peer(id)
	e.Registry.RecordReport(peer, e.reportWeight(reason))

	e.log.WithFields(logrus.Fields{
		"reporter": id,
		"target":   peer,
		"reason":   reason,
	}).Warn("Participant reported")

	e.emit(models.LifecycleEvent{
		Kind:    models.EventReportFiled,
		RoomID:  room.Token,
		Members: []models.ParticipantID{id, peer},
		Reason:  reason,
		At:      e.now(),
	})
	return nil
}

// Sweep evicts stale behaviour profiles and expires waiters past MaxQueueWait.
func (e *Engine) Sweep() (evicted, expired int) {
	evicted = e.Registry.Evict()
	for _, p := range e.Queues.Expired(e.maxQueueWait) {
		e.Queues.Dequeue(p.ID)
		e.metrics.FailedPairings++
		e.notify(p.ID, models.NewPayloadMessage(models.TypeQueueTimeout, "", models.LookingForPartner{Type: p.ChatType}))
		expired++
	}
	if evicted > 0 || expired > 0 {
		e.log.WithFields(logrus.Fields{"evicted": evicted, "expired": expired}).Info("Sweep finished")
	}
	return evicted, expired
}

// Status takes a read-only snapshot.
func (e *Engine) Status() models.Status {
	snapshot := e.Queues.Snapshot()
	now := e.now()

	var waiters []models.WaiterStatus
	for _, t := range []models.ChatType{models.ChatTypeText, models.ChatTypeVideo} {
		position := 0
		e.Queues.Queue(t).Each(func(p *models.Participant) bool {
			position++
			waiters = append(waiters, models.WaiterStatus{
				ID:           p.ID,
				ChatType:     t,
				Position:     position,
				WaitedMs:     now.Sub(p.JoinTime).Milliseconds(),
				WaitPriority: e.Registry.ComputeWaitPriority(p.ID, p.JoinTime),
			})
			return true
		})
	}

	return models.Status{
		TextQueue:    snapshot.Text,
		VideoQueue:   snapshot.Video,
		ActiveRooms:  e.Rooms.Len(),
		Online:       len(e.connected),
		TotalUsers:   snapshot.Text + snapshot.Video + 2*e.Rooms.Len(),
		PrivateRooms: e.Private.Summaries(),
		Waiters:      waiters,
		Metrics:      e.metrics,
		Behavior:     e.Registry.Stats(),
	}
}

// Online lists connected participants in a stable order.
func (e *Engine) Online() []models.ParticipantID {
	ids := lo.Keys(e.connected)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (e *Engine) broadcastOnline() {
	msg := models.NewPayloadMessage(models.TypeUserCountUpdate, "", models.UserCount{Online: len(e.connected)})
	for _, id := range e.Online() {
		e.notify(id, msg)
	}
}

func (e *Engine) roomError(id models.ParticipantID, token models.RoomToken, err error) {
	reason := models.ReasonBadRequest
	switch {
	case errors.Is(err, ErrRoomNotFound):
		reason = models.ReasonRoomNotFound
	case errors.Is(err, ErrInvalidPassword):
		reason = models.ReasonInvalidPassword
	case errors.Is(err, ErrAlreadyMember):
		reason = models.ReasonAlreadyMember
	}
	e.log.WithFields(logrus.Fields{"participant_id": id, "room_token": token, "reason": reason}).Warn("Room request rejected")
	e.notify(id, models.NewPayloadMessage(models.TypeRoomError, token, models.RoomError{Reason: reason}))
}

func (e *Engine) reject(id models.ParticipantID, reason string) {
	e.notify(id, models.NewPayloadMessage(models.TypeError, "", models.RoomError{Reason: reason}))
}

func (e *Engine) notify(to models.ParticipantID, msg models.ChatMessage) bool {
	if e.notifier == nil {
		return false
	}
	return e.notifier.Notify(to, msg)
}

func (e *Engine) emit(event models.LifecycleEvent) {
	if e.events != nil {
		e.events.Emit(event)
	}
}
