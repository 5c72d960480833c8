// Package server exposes the HTTP surface of the call bridge: call
// placement, TwiML delivery, the media stream websocket, provider webhooks,
// health probes, and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxbridge/voxbridge/internal/callsession"
	"github.com/voxbridge/voxbridge/internal/health"
	"github.com/voxbridge/voxbridge/internal/observe"
	"github.com/voxbridge/voxbridge/internal/telephony"
	"github.com/voxbridge/voxbridge/internal/transport"
)

// CallPlacer is the slice of the telephony client the server needs.
type CallPlacer interface {
	PlaceCall(ctx context.Context, toNumber, twimlURL, statusCallback string) (string, error)
	EndCall(ctx context.Context, callSID string) error
	CallStatus(ctx context.Context, callSID string) (string, error)
}

// Config wires the server's collaborators.
type Config struct {
	// PublicHost is the externally reachable host used in TwiML and stream
	// URLs (e.g., "voice.example.com").
	PublicHost string

	Manager *callsession.Manager
	Calls   CallPlacer
	Rooms   callsession.RoomService
	Health  *health.Handler
	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// Server routes HTTP traffic to the call pipeline.
type Server struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	bySID map[string]string // Twilio call SID -> call ID
	sidOf map[string]string // call ID -> Twilio call SID
}

// New creates a Server. Manager, Calls, and Rooms are required.
func New(cfg Config) (*Server, error) {
	if cfg.Manager == nil || cfg.Calls == nil || cfg.Rooms == nil {
		return nil, errors.New("server: manager, call placer, and room service are required")
	}
	if cfg.PublicHost == "" {
		return nil, errors.New("server: public host is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		bySID:  make(map[string]string),
		sidOf:  make(map[string]string),
	}, nil
}

func (s *Server) track(callSID, callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySID[callSID] = callID
	s.sidOf[callID] = callSID
}

func (s *Server) forgetSID(callSID string) (callID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	callID, ok = s.bySID[callSID]
	if ok {
		delete(s.bySID, callSID)
		delete(s.sidOf, callID)
	}
	return callID, ok
}

func (s *Server) lookupCallID(callID string) (callSID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	callSID, ok = s.sidOf[callID]
	return callSID, ok
}

func (s *Server) forgetCallID(callID string) (callSID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	callSID, ok = s.sidOf[callID]
	if ok {
		delete(s.sidOf, callID)
		delete(s.bySID, callSID)
	}
	return callSID, ok
}

// Routes returns the fully wired handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/call", s.handlePlaceCall)
	mux.HandleFunc("GET /api/call/{call_id}", s.handleCallStatus)
	mux.HandleFunc("POST /twiml/{call_id}", s.handleTwiML)
	mux.HandleFunc("GET /stream/{call_id}", s.handleStream)
	mux.HandleFunc("POST /webhook/twilio", s.handleTwilioWebhook)
	mux.HandleFunc("POST /webhook/livekit", s.handleLiveKitWebhook)
	mux.Handle("GET /metrics", promhttp.Handler())

	if s.cfg.Health != nil {
		s.cfg.Health.Register(mux)
	}

	var handler http.Handler = mux
	if s.cfg.Metrics != nil {
		handler = observe.Middleware(s.cfg.Metrics)(handler)
	}
	return handler
}

// callRequest is the body of POST /api/call.
type callRequest struct {
	PhoneNumber   string  `json:"phone_number"`
	Amount        float64 `json:"amount"`
	DueDate       string  `json:"due_date"`
	AccountNumber string  `json:"account_number,omitempty"`
}

// callResponse is the body returned by POST /api/call.
type callResponse struct {
	CallID  string `json:"call_id"`
	CallSID string `json:"call_sid"`
	Room    string `json:"livekit_room"`
}

// handlePlaceCall creates the media room, then dials out. The TwiML Twilio
// fetches on answer bridges the call audio back to /stream/{call_id}.
func (s *Server) handlePlaceCall(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PhoneNumber == "" {
		httpError(w, http.StatusBadRequest, "phone_number is required")
		return
	}

	callID := uuid.NewString()
	roomName := "call-" + callID

	// Create the room up front so the callee lands in an existing room.
	// The session re-creates it idempotently when the stream connects.
	if _, err := s.cfg.Rooms.CreateRoom(r.Context(), roomName); err != nil {
		s.logger.Error("room creation failed", "room", roomName, "error", err)
		httpError(w, http.StatusBadGateway, "could not prepare media room")
		return
	}

	twimlURL := fmt.Sprintf("https://%s/twiml/%s", s.cfg.PublicHost, callID)
	statusCallback := fmt.Sprintf("https://%s/webhook/twilio", s.cfg.PublicHost)

	callSID, err := s.cfg.Calls.PlaceCall(r.Context(), req.PhoneNumber, twimlURL, statusCallback)
	if err != nil {
		s.logger.Error("call placement failed", "to", req.PhoneNumber, "error", err)
		// Unwind the room we just created.
		if derr := s.cfg.Rooms.DeleteRoom(context.WithoutCancel(r.Context()), roomName); derr != nil {
			s.logger.Warn("room cleanup after failed call", "room", roomName, "error", derr)
		}
		httpError(w, http.StatusBadGateway, "could not place call")
		return
	}

	s.track(callSID, callID)
	s.logger.Info("call initiated",
		"call_id", callID,
		"call_sid", callSID,
		"to", req.PhoneNumber,
		"amount", req.Amount,
		"due_date", req.DueDate,
	)
	writeJSON(w, http.StatusCreated, callResponse{CallID: callID, CallSID: callSID, Room: roomName})
}

// statusResponse is the body returned by GET /api/call/{call_id}.
type statusResponse struct {
	CallID       string `json:"call_id"`
	CallSID      string `json:"call_sid"`
	TwilioStatus string `json:"twilio_status"`
	SessionState string `json:"session_state,omitempty"`
}

// handleCallStatus reports the telephone-leg status of a call placed through
// this server, plus the media session's lifecycle state while one is live.
func (s *Server) handleCallStatus(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("call_id")
	callSID, ok := s.lookupCallID(callID)
	if !ok {
		httpError(w, http.StatusNotFound, "unknown call")
		return
	}

	status, err := s.cfg.Calls.CallStatus(r.Context(), callSID)
	if err != nil {
		s.logger.Warn("call status lookup failed", "call_sid", callSID, "error", err)
		httpError(w, http.StatusBadGateway, "could not fetch call status")
		return
	}

	resp := statusResponse{CallID: callID, CallSID: callSID, TwilioStatus: status}
	if sess := s.cfg.Manager.Lookup(callID); sess != nil {
		resp.SessionState = sess.State().String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleTwiML serves the stream-connect TwiML Twilio fetches when the callee
// answers.
func (s *Server) handleTwiML(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("call_id")
	streamURL := fmt.Sprintf("wss://%s/stream/%s", s.cfg.PublicHost, callID)

	twiml, err := telephony.ConnectStreamTwiML(streamURL)
	if err != nil {
		s.logger.Error("twiml generation failed", "call_id", callID, "error", err)
		twiml = telephony.ErrorTwiML()
	}

	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprint(w, twiml)
}

// handleStream upgrades to a websocket and runs the call session for its
// full duration.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("call_id")

	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", "call_id", callID, "error", err)
		return
	}

	stream := transport.NewConn(ws, s.logger.With("call_id", callID))
	if err := s.cfg.Manager.Start(r.Context(), callID, stream); err != nil {
		s.logger.Error("session ended with error", "call_id", callID, "error", err)
	}

	// The session ended on our side; hang up the telephone leg too. When
	// the callee hung up first, Twilio already completed the call and the
	// status webhook has dropped the mapping.
	if callSID, ok := s.forgetCallID(callID); ok {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 10*time.Second)
		defer cancel()
		if err := s.cfg.Calls.EndCall(ctx, callSID); err != nil {
			s.logger.Warn("ending call failed", "call_sid", callSID, "error", err)
		}
	}
}

// handleTwilioWebhook consumes call status callbacks. A terminal status
// cancels the live session so resources unwind even when the media stream
// hangs.
func (s *Server) handleTwilioWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	callSID := r.PostForm.Get("CallSid")
	status := r.PostForm.Get("CallStatus")
	s.logger.Info("twilio status callback", "call_sid", callSID, "status", status)

	switch status {
	case telephony.StatusCompleted, telephony.StatusFailed, "busy", "no-answer", "canceled":
		if callID, ok := s.forgetSID(callSID); ok {
			go s.cfg.Manager.Cancel(callID)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// livekitEvent is the subset of the room server's webhook payload we act on.
type livekitEvent struct {
	Event string `json:"event"`
	Room  string `json:"room"`
}

// handleLiveKitWebhook deletes rooms the media server reports as ended. The
// delete is speculative; the session's own teardown usually got there first.
func (s *Server) handleLiveKitWebhook(w http.ResponseWriter, r *http.Request) {
	var ev livekitEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		httpError(w, http.StatusBadRequest, "invalid webhook body")
		return
	}

	if ev.Event == "room_ended" && ev.Room != "" {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 10*time.Second)
		defer cancel()
		if err := s.cfg.Rooms.DeleteRoom(ctx, ev.Room); err != nil {
			s.logger.Warn("room cleanup from webhook failed", "room", ev.Room, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
