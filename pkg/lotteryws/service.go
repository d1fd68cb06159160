// Package lotteryws is a STOMP-over-WebSocket client for the lottery service's
// push channel. It publishes voice commands and delivers command results and
// draw results to registered callbacks.
package lotteryws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"

	"github.com/abrezinsky/lotterydesk/internal/logger"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryapi"
)

// STOMP destinations used by the lottery service
const (
	DestVoiceCommand   = "/app/voice-command"
	TopicCommandResult = "/topic/command-result"
	TopicLotteryResult = "/topic/lottery-result"
)

// Subscription keys accepted by Unsubscribe
const (
	KeyCommandResult = "commandResult"
	KeyLotteryResult = "lotteryResult"
)

const (
	// DefaultSessionID is sent when SendVoiceCommand gets an empty session ID
	DefaultSessionID = "default"
	// DefaultReconnectDelay is the fixed wait between connection attempts
	DefaultReconnectDelay = 5 * time.Second
	// DefaultHeartbeat is used for both outgoing and incoming heart-beats
	DefaultHeartbeat = 4 * time.Second

	disconnectTimeout = 2 * time.Second
)

// ErrNotConnected is returned by publish and subscribe calls made without a live session
var ErrNotConnected = errors.New("websocket not connected")

// ConnectError means the broker answered CONNECT with an ERROR frame
type ConnectError struct {
	Message string
}

func (e *ConnectError) Error() string {
	return "stomp connect rejected: " + e.Message
}

// Options tunes connection behavior. Zero values select the defaults.
type Options struct {
	ReconnectDelay time.Duration
	Heartbeat      time.Duration
	Dialer         *websocket.Dialer
}

type subscription struct {
	destination string
	handle      func(body []byte)
	sub         *stomp.Subscription
}

// Service owns one STOMP session and the subscriptions registered on it
type Service struct {
	endpoint string
	log      logger.Logger
	opts     Options

	mu        sync.Mutex
	conn      *stomp.Conn
	transport *wsConn
	connected bool
	subs      map[string]*subscription
	cancel    context.CancelFunc
}

// EndpointURL derives the raw WebSocket URL (<service>/ws/websocket) from the
// service's HTTP base URL
func EndpointURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("invalid service URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid service URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid service URL: missing host")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/websocket"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// New creates a Service for a WebSocket endpoint such as ws://host:8080/ws/websocket
func New(endpoint string, log logger.Logger, opts Options) *Service {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Service{
		endpoint: endpoint,
		log:      log,
		opts:     opts,
		subs:     make(map[string]*subscription),
	}
}

// Endpoint returns the WebSocket URL the service dials
func (s *Service) Endpoint() string {
	return s.endpoint
}

// Connected reports whether a STOMP session is currently established
func (s *Service) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Connect dials the broker and completes the STOMP handshake. Dial and
// handshake failures are retried every ReconnectDelay until ctx ends; an ERROR
// frame in reply to CONNECT is returned as *ConnectError. Once connected,
// dropped sessions are re-established in the background until Disconnect.
func (s *Service) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	conn, transport, err := s.establish(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.connected {
		// a concurrent Connect won; its session stays live
		s.mu.Unlock()
		transport.Close()
		return nil
	}
	superCtx, cancel := context.WithCancel(context.Background())
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.install(conn, transport)
	s.mu.Unlock()

	s.log.Info("Lottery websocket connected", "endpoint", s.endpoint)
	go s.supervise(superCtx, transport)
	return nil
}

type session struct {
	conn      *stomp.Conn
	transport *wsConn
}

func (s *Service) establish(ctx context.Context) (*stomp.Conn, *wsConn, error) {
	attempt := func() (session, error) {
		ws, _, err := s.opts.Dialer.DialContext(ctx, s.endpoint, nil)
		if err != nil {
			return session{}, err
		}
		transport := newWSConn(ws)

		conn, err := stomp.Connect(transport,
			stomp.ConnOpt.HeartBeat(s.opts.Heartbeat, s.opts.Heartbeat),
			stomp.ConnOpt.Host(s.host()),
		)
		if err != nil {
			transport.Close()
			if msg, ok := rejection(err); ok {
				return session{}, backoff.Permanent(&ConnectError{Message: msg})
			}
			return session{}, err
		}
		return session{conn: conn, transport: transport}, nil
	}

	notify := func(err error, next time.Duration) {
		s.log.Warn("Lottery websocket connect failed, retrying", "endpoint", s.endpoint, "error", err, "retry_in", next)
	}

	for {
		sess, err := backoff.Retry(ctx, attempt,
			backoff.WithBackOff(backoff.NewConstantBackOff(s.opts.ReconnectDelay)),
			backoff.WithNotify(notify),
		)
		if err == nil {
			return sess.conn, sess.transport, nil
		}

		var rejected *ConnectError
		if errors.As(err, &rejected) {
			s.log.Error("Lottery websocket connect rejected", "message", rejected.Message)
			return nil, nil, rejected
		}
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		// Retry gave up on elapsed time; a fixed-delay client never does.
	}
}

// rejection reports whether err is the broker answering CONNECT with an ERROR
// frame, and returns the frame's message. Transport failures during the
// handshake are not rejections.
func rejection(err error) (string, bool) {
	var stompErr stomp.Error
	if !errors.As(err, &stompErr) || stompErr.Frame == nil || stompErr.Frame.Command != frame.ERROR {
		return "", false
	}
	return stompErr.Message, true
}

func (s *Service) host() string {
	u, err := url.Parse(s.endpoint)
	if err != nil || u.Hostname() == "" {
		return "/"
	}
	return u.Hostname()
}

// install makes conn the live session and re-issues registered subscriptions.
// Caller holds s.mu.
func (s *Service) install(conn *stomp.Conn, transport *wsConn) {
	s.conn = conn
	s.transport = transport
	s.connected = true

	for key, entry := range s.subs {
		sub, err := conn.Subscribe(entry.destination, stomp.AckAuto)
		if err != nil {
			s.log.Error("Failed to restore subscription", "key", key, "destination", entry.destination, "error", err)
			entry.sub = nil
			continue
		}
		entry.sub = sub
		go s.dispatch(key, sub, entry.handle)
	}
}

func (s *Service) supervise(ctx context.Context, transport *wsConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-transport.Done():
		}

		s.mu.Lock()
		if s.transport != transport {
			s.mu.Unlock()
			return
		}
		s.connected = false
		s.conn = nil
		s.mu.Unlock()

		s.log.Warn("Lottery websocket connection lost, reconnecting", "endpoint", s.endpoint, "delay", s.opts.ReconnectDelay)

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.opts.ReconnectDelay):
			}

			conn, next, err := s.establish(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				continue
			}

			s.mu.Lock()
			if ctx.Err() != nil {
				s.mu.Unlock()
				next.Close()
				return
			}
			s.install(conn, next)
			s.mu.Unlock()

			s.log.Info("Lottery websocket reconnected", "endpoint", s.endpoint)
			transport = next
			break
		}
	}
}

func (s *Service) dispatch(key string, sub *stomp.Subscription, handle func([]byte)) {
	for msg := range sub.C {
		if msg.Err != nil {
			s.log.Debug("Subscription ended", "key", key, "error", msg.Err)
			continue
		}
		handle(msg.Body)
	}
}

// Disconnect ends the session and stops reconnecting. Registered
// subscriptions are forgotten.
func (s *Service) Disconnect() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	conn := s.conn
	transport := s.transport
	s.conn = nil
	s.transport = nil
	s.connected = false
	s.subs = make(map[string]*subscription)
	s.mu.Unlock()

	if conn != nil {
		done := make(chan struct{})
		go func() {
			conn.Disconnect()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(disconnectTimeout):
			s.log.Warn("Lottery websocket disconnect timed out")
		}
	}
	if transport != nil {
		transport.Close()
	}
	s.log.Info("Lottery websocket disconnected")
}

// SendVoiceCommand publishes {transcript, sessionId} to /app/voice-command
func (s *Service) SendVoiceCommand(transcript, sessionID string) error {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	s.mu.Lock()
	conn := s.conn
	connected := s.connected
	s.mu.Unlock()

	if !connected || conn == nil {
		s.log.Warn("Voice command dropped, websocket not connected")
		return ErrNotConnected
	}

	body, err := json.Marshal(lotteryapi.VoiceCommand{Transcript: transcript, SessionID: sessionID})
	if err != nil {
		return fmt.Errorf("failed to encode voice command: %w", err)
	}
	if err := conn.Send(DestVoiceCommand, "application/json", body); err != nil {
		return fmt.Errorf("failed to send voice command: %w", err)
	}
	s.log.Debug("Voice command sent", "session_id", sessionID)
	return nil
}

// SubscribeCommandResult delivers /topic/command-result messages to cb
func (s *Service) SubscribeCommandResult(cb func(lotteryapi.CommandResponse)) error {
	return s.subscribe(KeyCommandResult, TopicCommandResult, func(body []byte) {
		var resp lotteryapi.CommandResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			s.log.Warn("Dropping malformed command result", "error", err)
			return
		}
		cb(resp)
	})
}

// SubscribeLotteryResult delivers /topic/lottery-result messages to cb
func (s *Service) SubscribeLotteryResult(cb func(lotteryapi.DrawResult)) error {
	return s.subscribe(KeyLotteryResult, TopicLotteryResult, func(body []byte) {
		var result lotteryapi.DrawResult
		if err := json.Unmarshal(body, &result); err != nil {
			s.log.Warn("Dropping malformed lottery result", "error", err)
			return
		}
		cb(result)
	})
}

func (s *Service) subscribe(key, destination string, handle func([]byte)) error {
	s.mu.Lock()
	if !s.connected || s.conn == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	previous := s.subs[key]
	delete(s.subs, key)

	sub, err := s.conn.Subscribe(destination, stomp.AckAuto)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to subscribe to %s: %w", destination, err)
	}
	s.subs[key] = &subscription{destination: destination, handle: handle, sub: sub}
	s.mu.Unlock()

	go s.dispatch(key, sub, handle)

	if previous != nil && previous.sub != nil {
		previous.sub.Unsubscribe()
	}
	s.log.Debug("Subscribed", "key", key, "destination", destination)
	return nil
}

// Unsubscribe drops the subscription registered under key (commandResult or lotteryResult)
func (s *Service) Unsubscribe(key string) {
	s.mu.Lock()
	entry, ok := s.subs[key]
	delete(s.subs, key)
	connected := s.connected
	s.mu.Unlock()

	if !ok || entry.sub == nil || !connected {
		return
	}
	if err := entry.sub.Unsubscribe(); err != nil {
		s.log.Debug("Unsubscribe failed", "key", key, "error", err)
	}
}

// UnsubscribeAll drops every registered subscription
func (s *Service) UnsubscribeAll() {
	s.mu.Lock()
	keys := make([]string, 0, len(s.subs))
	for key := range s.subs {
		keys = append(keys, key)
	}
	s.mu.Unlock()

	for _, key := range keys {
		s.Unsubscribe(key)
	}
}
