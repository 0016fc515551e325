package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"driftchat/backend/internal/models"

	"github.com/sirupsen/logrus"
)

// ErrManagerStopped повертається викликами, зробленими після завершення Run.
var ErrManagerStopped = errors.New("manager stopped")

// ManagerOptions налаштовує хаб та його рушій.
type ManagerOptions struct {
	Engine EngineOptions
	// SweepInterval <= 0 вимикає періодичне очищення профілів та черг.
	SweepInterval time.Duration
	// PasswordWorkers > 0 виносить хешування паролів кімнат з горутини хаба
	// на стільки ж воркерів. 0 перевіряє паролі на місці.
	PasswordWorkers int
}

// ManagerService володіє всіма підключеними клієнтами та рушієм. Лише Run
// торкається їх; решта спілкується з ним через канали.
type ManagerService struct {
	Clients map[models.ParticipantID]Client

	// Канали
	IncomingCh   chan models.ChatMessage
	RegisterCh   chan Client
	UnregisterCh chan Client
	AnnounceCh   chan string

	statusCh chan chan models.Status
	done     chan struct{}

	// Хешування паролів: воркер виконує job і повертає продовження для хаба
	passwordWorkers int
	hashJobs        chan func() func()
	hashResults     chan func()

	engine        *Engine
	sweepInterval time.Duration
	pendingDrops  []models.ParticipantID
	log           *logrus.Entry
}

func NewManagerService(opts ManagerOptions) *ManagerService {
	m := &ManagerService{
		Clients:         make(map[models.ParticipantID]Client),
		IncomingCh:      make(chan models.ChatMessage, 64),
		RegisterCh:      make(chan Client),
		UnregisterCh:    make(chan Client),
		AnnounceCh:      make(chan string, 8),
		statusCh:        make(chan chan models.Status),
		done:            make(chan struct{}),
		passwordWorkers: opts.PasswordWorkers,
		sweepInterval:   opts.SweepInterval,
		log:             logrus.WithField("component", "manager"),
	}
	if m.passwordWorkers > 0 {
		m.hashJobs = make(chan func() func(), m.passwordWorkers*4)
		m.hashResults = make(chan func(), m.passwordWorkers)
	}
	m.engine = NewEngine(m, opts.Engine)
	return m
}

// Run обробляє події хаба, доки ctx не скасовано, після чого закриває всіх клієнтів.
func (m *ManagerService) Run(ctx context.Context) {
	var sweep <-chan time.Time
	if m.sweepInterval > 0 {
		ticker := time.NewTicker(m.sweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}
	defer close(m.done)

	for i := 0; i < m.passwordWorkers; i++ {
		go m.hashWorker(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			for id, client := range m.Clients {
				client.Close()
				delete(m.Clients, id)
			}
			m.log.Info("Manager stopped")
			return

		case client := <-m.RegisterCh:
			m.register(client)

		case client := <-m.UnregisterCh:
			m.unregister(client)

		case msg := <-m.IncomingCh:
			m.Dispatch(msg)

		case text := <-m.AnnounceCh:
			m.broadcast(models.ChatMessage{Type: models.TypeAnnouncement, Content: text})

		case reply := <-m.statusCh:
			reply <- m.engine.Status()

		case apply := <-m.hashResults:
			apply()

		case <-sweep:
			m.engine.Sweep()
		}
		m.flushDrops()
	}
}

func (m *ManagerService) register(client Client) {
	id := client.GetUserID()
	if old, ok := m.Clients[id]; ok && old != client {
		// друге з'єднання з тією ж ідентичністю замінює перше
		old.Close()
	}
	m.Clients[id] = client
	m.engine.Connect(id)
	m.log.WithField("participant_id", id).Debug("Client registered")
}

func (m *ManagerService) unregister(client Client) {
	id := client.GetUserID()
	if current, ok := m.Clients[id]; !ok || current != client {
		return
	}
	delete(m.Clients, id)
	client.Close()
	m.engine.Disconnect(id)
	m.log.WithField("participant_id", id).Debug("Client unregistered")
}

// Register передає нового клієнта хабу. Після зупинки хаба клієнт одразу
// закривається, а виклик не блокується.
func (m *ManagerService) Register(client Client) bool {
	select {
	case m.RegisterCh <- client:
		return true
	case <-m.done:
		client.Close()
		return false
	}
}

// Unregister передає клієнта хабу на видалення. Після зупинки хаба повертається
// одразу, тож помпи не блокуються при завершенні.
func (m *ManagerService) Unregister(client Client) {
	select {
	case m.UnregisterCh <- client:
	case <-m.done:
	}
}

// Submit передає вхідне повідомлення хабу. Повертає false, якщо хаб зупинено.
func (m *ManagerService) Submit(msg models.ChatMessage) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.IncomingCh <- msg:
		return true
	case <-m.done:
		return false
	}
}

// Status просить горутину хаба про знімок стану.
func (m *ManagerService) Status(ctx context.Context) (models.Status, error) {
	reply := make(chan models.Status, 1)
	select {
	case m.statusCh <- reply:
	case <-ctx.Done():
		return models.Status{}, ctx.Err()
	case <-m.done:
		return models.Status{}, ErrManagerStopped
	}
	select {
	case status := <-reply:
		return status, nil
	case <-ctx.Done():
		return models.Status{}, ctx.Err()
	}
}

// Notify реалізує Notifier. Клієнт із переповненою чергою відправки
// від'єднується після завершення поточної події.
func (m *ManagerService) Notify(to models.ParticipantID, msg models.ChatMessage) bool {
	client, ok := m.Clients[to]
	if !ok {
		return false
	}
	select {
	case client.GetSendChannel() <- msg:
		return true
	default:
		m.log.WithFields(logrus.Fields{"participant_id": to, "type": msg.Type}).Warn("Outbox full, dropping client")
		delete(m.Clients, to)
		client.Close()
		m.pendingDrops = append(m.pendingDrops, to)
		return false
	}
}

func (m *ManagerService) flushDrops() {
	for len(m.pendingDrops) > 0 {
		id := m.pendingDrops[0]
		m.pendingDrops = m.pendingDrops[1:]
		m.engine.Disconnect(id)
	}
}

func (m *ManagerService) broadcast(msg models.ChatMessage) {
	for id := range m.Clients {
		m.Notify(id, msg)
	}
}

// Dispatch спрямовує одне вхідне повідомлення до рушія. Некоректний payload
// отримує повідомлення про помилку і нічого не змінює.
func (m *ManagerService) Dispatch(msg models.ChatMessage) {
	id := msg.SenderID
	entry := m.log.WithFields(logrus.Fields{"participant_id": id, "type": msg.Type})

	switch msg.Type {
	case models.TypeJoinQueue:
		var req models.JoinQueueRequest
		if !m.decode(msg, &req) {
			return
		}
		m.engine.JoinQueue(id, req.ChatType, req.Metadata)

	case models.TypeJoinTextQueue, models.TypeJoinVideoQueue:
		meta := models.Metadata{Region: "global", Language: "en"}
		if !m.decode(msg, &meta) {
			return
		}
		t := models.ChatTypeText
		if msg.Type == models.TypeJoinVideoQueue {
			t = models.ChatTypeVideo
		}
		m.engine.JoinQueue(id, t, meta)

	case models.TypeLeaveQueue:
		m.engine.LeaveQueue(id)

	case models.TypeStopChat:
		m.engine.StopChat(id)

	case models.TypeNextPartner:
		m.engine.NextPartner(id)

	case models.TypeTextMessage:
		if err := m.engine.ChatMessage(id, msg); err != nil {
			entry.WithError(err).Debug("Message not relayed")
		}

	case models.TypeWebRTCSignal:
		if err := m.engine.Signal(id, msg); err != nil {
			entry.WithError(err).Debug("Signal not relayed")
		}

	case models.TypeCreateRoom:
		var req models.CreateRoomRequest
		if !m.decode(msg, &req) {
			return
		}
		if m.hashJobs == nil {
			if _, err := m.engine.CreateRoom(id, req); err != nil {
				entry.WithError(err).Warn("Create room failed")
			}
			return
		}
		m.sealAsync(id, req)

	case models.TypeJoinRoom:
		req := models.JoinRoomRequest{RoomID: msg.RoomID}
		if !m.decode(msg, &req) {
			return
		}
		if m.hashJobs == nil {
			_ = m.engine.JoinRoom(id, req)
			return
		}
		m.verifyAsync(id, req)

	case models.TypeLeaveRoom, models.TypeEndRoom, models.TypeRoomMessage:
		ref := models.RoomRef{RoomID: msg.RoomID}
		if !m.decode(msg, &ref) {
			return
		}
		switch msg.Type {
		case models.TypeLeaveRoom:
			_ = m.engine.LeaveRoom(id, ref.RoomID)
		case models.TypeEndRoom:
			_ = m.engine.EndRoom(id, ref.RoomID)
		default:
			_ = m.engine.RoomMessage(id, ref.RoomID, msg)
		}

	case models.TypeReport:
		req := models.ReportRequest{Reason: msg.Content}
		if !m.decode(msg, &req) {
			return
		}
		_ = m.engine.Report(id, req.Reason)

	default:
		entry.Warn("Unknown message type")
		m.engine.reject(id, models.ReasonUnknownType)
	}
}

// decode заповнює v з payload повідомлення. Порожній payload залишає v без змін.
func (m *ManagerService) decode(msg models.ChatMessage, v any) bool {
	if len(msg.Payload) == 0 {
		return true
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		m.log.WithFields(logrus.Fields{
			"participant_id": msg.SenderID,
			"type":           msg.Type,
		}).WithError(err).Warn("Malformed payload")
		m.engine.reject(msg.SenderID, models.ReasonBadRequest)
		return false
	}
	return true
}

// sealAsync хешує пароль нової кімнати на воркері; кімната створюється вже в хабі.
func (m *ManagerService) sealAsync(id models.ParticipantID, req models.CreateRoomRequest) {
	sealer := m.engine.Private.Sealer()
	m.offload(id, func() func() {
		sealed, err := sealer.Seal(req.Password)
		return func() {
			if err != nil {
				m.log.WithField("participant_id", id).WithError(err).Error("Failed to seal room password")
				m.engine.reject(id, models.ReasonBadRequest)
				return
			}
			if _, err := m.engine.CreateSealedRoom(id, req, sealed); err != nil {
				m.log.WithField("participant_id", id).WithError(err).Debug("Sealed room dropped")
			}
		}
	})
}

// verifyAsync перевіряє пароль на воркері, а допуск до кімнати робить хаб.
func (m *ManagerService) verifyAsync(id models.ParticipantID, req models.JoinRoomRequest) {
	secret, err := m.engine.RoomSecret(id, req.RoomID)
	if err != nil {
		return
	}
	sealer := m.engine.Private.Sealer()
	m.offload(id, func() func() {
		verified := sealer.Verify(secret, req.Password)
		return func() {
			_ = m.engine.AdmitToRoom(id, req.RoomID, secret, verified)
		}
	})
}

// offload ставить job у чергу воркерів без блокування. Переповнена черга
// відхиляє запит з причиною busy.
func (m *ManagerService) offload(id models.ParticipantID, job func() func()) {
	select {
	case m.hashJobs <- job:
	default:
		m.log.WithField("participant_id", id).Warn("Password workers busy, request rejected")
		m.engine.reject(id, models.ReasonBusy)
	}
}

func (m *ManagerService) hashWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-m.hashJobs:
			apply := job()
			select {
			case m.hashResults <- apply:
			case <-ctx.Done():
				return
			}
		}
	}
}
