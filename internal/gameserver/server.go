package gameserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/cory-johannsen/impostor/internal/game/registry"
	"github.com/cory-johannsen/impostor/internal/game/room"
	"github.com/cory-johannsen/impostor/internal/game/session"
	"github.com/cory-johannsen/impostor/internal/game/words"
)

const archiveTimeout = 5 * time.Second

// RoundArchiver records started rounds outside the process.
//
// Postcondition: Returns nil on success or a non-nil error on failure.
type RoundArchiver interface {
	RecordRound(ctx context.Context, res room.RoundResult) error
}

// Server handles decoded client events for live connections.
// All methods are safe for concurrent use.
type Server struct {
	rooms    *registry.Registry
	bank     *words.Bank
	archive  RoundArchiver
	validate *validator.Validate
	logger   *zap.Logger
	pending  sync.WaitGroup
}

// NewServer creates a Server.
//
// Precondition: rooms, bank, and logger must be non-nil.
// archive may be nil (rounds are not archived).
func NewServer(rooms *registry.Registry, bank *words.Bank, archive RoundArchiver, logger *zap.Logger) *Server {
	return &Server{
		rooms:    rooms,
		bank:     bank,
		archive:  archive,
		validate: validator.New(),
		logger:   logger,
	}
}

// Handle dispatches one client event from conn.
//
// When wantsAck is true the acknowledgement is returned. Otherwise a failure
// is pushed to conn as errorMsg (joinFailed for joinRoom) and nil is returned.
// A panic in a handler is logged and reported as INTERNAL.
func (s *Server) Handle(ctx context.Context, conn session.Conn, event string, data json.RawMessage, wantsAck bool) (ack any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("event handler panic",
				zap.String("event", event),
				zap.String("conn_id", conn.ID()),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			ack = s.finish(conn, event, Ack{Error: "internal error", ErrorCode: CodeInternal}, wantsAck)
		}
	}()
	return s.finish(conn, event, s.dispatch(ctx, conn, event, data), wantsAck)
}

func (s *Server) finish(conn session.Conn, event string, ack any, wantsAck bool) any {
	if wantsAck {
		return ack
	}
	failed, ok := ack.(Ack)
	if !ok || failed.OK {
		return nil
	}
	name := EventErrorMsg
	if event == EventJoinRoom {
		name = EventJoinFailed
	}
	if err := conn.Push(session.Event{Name: name, Data: failed}); err != nil {
		s.logger.Warn("dropping failure notice",
			zap.String("event", name),
			zap.String("conn_id", conn.ID()),
			zap.Error(err),
		)
	}
	return nil
}

func (s *Server) dispatch(ctx context.Context, conn session.Conn, event string, data json.RawMessage) any {
	switch event {
	case EventCreateRoom:
		req, err := decodeRequest[CreateRoomRequest](s.validate, data)
		if err != nil {
			return failAck(err)
		}
		return s.handleCreateRoom(conn, req)
	case EventJoinRoom:
		req, err := decodeRequest[JoinRoomRequest](s.validate, data)
		if err != nil {
			return failAck(err)
		}
		return s.handleJoinRoom(conn, req)
	case EventLeaveRoom:
		req, err := decodeRequest[LeaveRoomRequest](s.validate, data)
		if err != nil {
			return failAck(err)
		}
		return s.handleLeaveRoom(req)
	case EventSetCategory:
		req, err := decodeRequest[SetCategoryRequest](s.validate, data)
		if err != nil {
			return failAck(err)
		}
		return s.handleSetCategory(conn, req)
	case EventStartRound:
		req, err := decodeRequest[StartRoundRequest](s.validate, data)
		if err != nil {
			return failAck(err)
		}
		return s.handleStartRound(ctx, conn, req)
	case EventSetReady:
		req, err := decodeRequest[SetReadyRequest](s.validate, data)
		if err != nil {
			return failAck(err)
		}
		return s.handleSetReady(ctx, conn, req)
	case EventListCategories:
		return s.bank.Categories()
	default:
		return failAck(fmt.Errorf("%w: unknown event %q", errBadRequest, event))
	}
}

// decodeRequest unmarshals and validates a payload. An absent payload
// decodes as an empty object.
func decodeRequest[T any](v *validator.Validate, data json.RawMessage) (T, error) {
	var req T
	if len(data) == 0 || string(data) == "null" {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("%w: decoding payload: %v", errBadRequest, err)
	}
	if err := v.Struct(req); err != nil {
		return req, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return req, nil
}

func (s *Server) handleCreateRoom(conn session.Conn, req CreateRoomRequest) Ack {
	_, res, err := s.rooms.CreateRoom(conn, req.Name, req.Category)
	if err != nil {
		s.logger.Info("create room failed", zap.String("conn_id", conn.ID()), zap.Error(err))
		return failAck(err)
	}
	return Ack{OK: true, Code: res.Code, SessionID: res.SessionID}
}

func (s *Server) handleJoinRoom(conn session.Conn, req JoinRoomRequest) Ack {
	_, res, err := s.rooms.JoinRoom(conn, req.Code, req.SessionID, req.Name)
	if err != nil {
		s.logger.Info("join room failed",
			zap.String("conn_id", conn.ID()),
			zap.String("code", req.Code),
			zap.Error(err),
		)
		return failAck(err)
	}
	return Ack{OK: true, Code: res.Code, SessionID: res.SessionID, Reconnected: res.Reconnected}
}

func (s *Server) handleLeaveRoom(req LeaveRoomRequest) Ack {
	if err := s.rooms.LeaveRoom(req.Code, req.SessionID); err != nil {
		return failAck(err)
	}
	return okAck()
}

func (s *Server) handleSetCategory(conn session.Conn, req SetCategoryRequest) Ack {
	rm, issuer, err := s.resolveIssuer(conn, req.Code)
	if err != nil {
		return failAck(err)
	}
	if err := rm.SetCategory(issuer, req.Category); err != nil {
		return failAck(err)
	}
	return okAck()
}

func (s *Server) handleStartRound(ctx context.Context, conn session.Conn, req StartRoundRequest) Ack {
	rm, issuer, err := s.resolveIssuer(conn, req.Code)
	if err != nil {
		return failAck(err)
	}
	res, err := rm.StartRound(issuer)
	if err != nil {
		return failAck(err)
	}
	s.archiveRound(ctx, res)
	return okAck()
}

func (s *Server) handleSetReady(ctx context.Context, conn session.Conn, req SetReadyRequest) Ack {
	rm, issuer, ok := s.rooms.FindRoomForConnection(conn.ID())
	if !ok {
		return failAck(fmt.Errorf("%w: connection %s is not in a room", room.ErrSessionNotFound, conn.ID()))
	}
	res, err := rm.SetReady(issuer, *req.Ready)
	if err != nil {
		return failAck(err)
	}
	if res != nil {
		s.archiveRound(ctx, *res)
	}
	return okAck()
}

// resolveIssuer returns the room named by code and the session conn holds in
// it. A connection that is not a member resolves to an empty issuer, which
// the room rejects with ErrNotHost.
func (s *Server) resolveIssuer(conn session.Conn, code string) (*room.Room, string, error) {
	code = registry.NormalizeCode(code)
	if rm, sid, ok := s.rooms.FindRoomForConnection(conn.ID()); ok && rm.Code() == code {
		return rm, sid, nil
	}
	rm, ok := s.rooms.Room(code)
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", room.ErrRoomNotFound, code)
	}
	return rm, "", nil
}

// archiveRound records res in the background.
func (s *Server) archiveRound(ctx context.Context, res room.RoundResult) {
	if s.archive == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
		defer cancel()
		if err := s.archive.RecordRound(actx, res); err != nil {
			s.logger.Warn("archiving round",
				zap.String("code", res.Code),
				zap.Int("round", res.Round),
				zap.Error(err),
			)
		}
	}()
}

// Disconnect marks the member bound to connID offline.
func (s *Server) Disconnect(connID string) {
	s.rooms.Disconnect(connID)
}

// Close waits for in-flight archive writes.
func (s *Server) Close() {
	s.pending.Wait()
}
