// Package gateway runs chat channels, turns their messages into tip intents,
// records them in the ledger and serves health endpoints.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"tipbot/pkg/bus"
	"tipbot/pkg/channel"
	"tipbot/pkg/config"
	"tipbot/pkg/rates"
	"tipbot/pkg/store"
	"tipbot/pkg/tip"
)

const (
	defaultHealthHost    = "0.0.0.0"
	defaultHealthPort    = 18790
	rateHealthInterval   = 30 * time.Second
	rateHealthTimeout    = 10 * time.Second
	messageHandleTimeout = 30 * time.Second
)

// Ledger is the slice of the store the gateway needs.
type Ledger interface {
	Seen(ctx context.Context, channel string, messageID string) (bool, error)
	Record(ctx context.Context, rec store.Record) (bool, error)
}

// Deps bundles the collaborators of a Service.
type Deps struct {
	Parser *tip.Parser
	Rates  tip.RateSource
	Ledger Ledger
	Bus    *bus.MessageBus
}

type Service struct {
	cfg      *config.Config
	log      *slog.Logger
	parser   *tip.Parser
	rates    tip.RateSource
	ledger   Ledger
	bus      *bus.MessageBus
	channels []channel.Adapter

	mu             sync.RWMutex
	startedAt      time.Time
	rateLastOKAt   time.Time
	rateLastErr    string
	rateLast       string
	channelStates  map[string]channelState
	processedCount map[string]int
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status        string                  `json:"status"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	Rate          string                  `json:"rate,omitempty"`
	RateLastOKAt  string                  `json:"rate_last_ok_at,omitempty"`
	RateLastErr   string                  `json:"rate_last_error,omitempty"`
	Channels      map[string]channelState `json:"channels"`
	Processed     map[string]int          `json:"processed"`
}

func NewService(cfg *config.Config, adapters []channel.Adapter, deps Deps, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if len(adapters) == 0 {
		return nil, errors.New("at least one channel adapter is required")
	}
	if deps.Parser == nil {
		return nil, errors.New("parser is required")
	}
	if deps.Rates == nil {
		return nil, errors.New("rate source is required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if deps.Bus == nil {
		deps.Bus = bus.NewMessageBus()
	}
	if log == nil {
		log = slog.Default()
	}

	channelStates := make(map[string]channelState, len(adapters))
	for _, adapter := range adapters {
		channelStates[adapter.Name()] = channelState{}
	}

	return &Service{
		cfg:            cfg,
		log:            log.With("component", "gateway.service"),
		parser:         deps.Parser,
		rates:          deps.Rates,
		ledger:         deps.Ledger,
		bus:            deps.Bus,
		channels:       adapters,
		channelStates:  channelStates,
		processedCount: make(map[string]int),
	}, nil
}

// Run starts every channel and the status server, and blocks until ctx is
// done or a component fails.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	if err := s.checkRateHealth(ctx); err != nil {
		// Fiat tips fail until the feed recovers; fixed-unit tips still work.
		s.log.Warn("Rate source unhealthy at startup", "error", err)
	}

	ticker := time.NewTicker(rateHealthInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.checkRateHealth(ctx); err != nil {
					s.log.Warn("Rate health check failed", "error", err)
				}
			}
		}
	}()

	errCh := make(chan error, len(s.channels))
	for _, adapter := range s.channels {
		s.setChannelState(adapter.Name(), channelState{Running: true})

		go func() {
			err := adapter.Run(ctx, s.handleInbound)
			s.setChannelState(adapter.Name(), channelState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("run %s channel: %w", adapter.Name(), err)
			}
		}()
	}

	serverErrors := make(chan error, 1)
	go s.runHealthServer(ctx, serverErrors)

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErrors:
		return err
	case err := <-errCh:
		return err
	}
}

// handleInbound is the channel.Handler shared by every adapter.
func (s *Service) handleInbound(ctx context.Context, inbound bus.InboundMessage) (bus.OutboundMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, messageHandleTimeout)
	defer cancel()

	outbound := bus.OutboundMessage{
		Channel:   inbound.Channel,
		ChatID:    inbound.ChatID,
		ReplyToID: inbound.MessageID,
	}

	seen, err := s.ledger.Seen(ctx, inbound.Channel, inbound.MessageID)
	if err != nil {
		s.publishFailure(ctx, inbound, "", err)
		return outbound, fmt.Errorf("check ledger: %w", err)
	}
	if seen {
		s.log.Debug("Skipping already processed message", "channel", inbound.Channel, "message_id", inbound.MessageID)
		return outbound, nil
	}

	requestID := bus.NewRequestID()
	sender := senderOf(inbound)
	s.bus.PublishEvent(ctx, bus.Event{
		Type:      bus.EventTipReceived,
		RequestID: requestID,
		Channel:   inbound.Channel,
		ChatID:    inbound.ChatID,
		MessageID: inbound.MessageID,
		Sender:    sender,
		Payload:   map[string]string{"content_length": strconv.Itoa(len(inbound.Content))},
	})

	intent, err := s.parser.Parse(ctx, tip.Message{Text: inbound.Content, Sender: sender})
	if err != nil {
		// Not recorded, so a redelivery of the same message is parsed again.
		s.publishFailure(ctx, inbound, requestID, err)
		if errors.Is(err, tip.ErrRateUnavailable) {
			s.recordRateError(err)
			outbound.Content = retryLaterReply
			outbound.Error = err.Error()
			return outbound, nil
		}
		return outbound, fmt.Errorf("parse message: %w", err)
	}

	outcome := decide(intent)
	rec := store.NewRecord(inbound.Channel, inbound.MessageID, inbound.Content, intent)
	if !outcome.Accepted {
		rec.Reason = outcome.Reason
		rec.Valid = false
	}
	inserted, err := s.ledger.Record(ctx, rec)
	if err != nil {
		s.publishFailure(ctx, inbound, requestID, err)
		return outbound, fmt.Errorf("record tip: %w", err)
	}
	if !inserted {
		s.log.Debug("Message recorded concurrently, skipping", "channel", inbound.Channel, "message_id", inbound.MessageID)
		return outbound, nil
	}
	s.countProcessed(inbound.Channel)

	event := bus.Event{
		Type:      bus.EventTipAccepted,
		RequestID: requestID,
		Channel:   inbound.Channel,
		ChatID:    inbound.ChatID,
		MessageID: inbound.MessageID,
		Sender:    intent.Sender,
		Recipient: intent.Recipient,
		Amount:    intent.Amount,
	}
	if !outcome.Accepted {
		event.Type = bus.EventTipRejected
		event.Reason = outcome.Reason
	}
	s.bus.PublishEvent(ctx, event)

	outbound.Content = FormatReply(outcome)
	outbound.Metadata = map[string]string{
		"request_id": requestID,
		"accepted":   strconv.FormatBool(outcome.Accepted),
	}
	if outcome.Reason != "" {
		outbound.Metadata["reason"] = outcome.Reason
	}

	return outbound, nil
}

func (s *Service) publishFailure(ctx context.Context, inbound bus.InboundMessage, requestID string, err error) {
	if requestID == "" {
		requestID = bus.NewRequestID()
	}
	s.bus.PublishEvent(ctx, bus.Event{
		Type:      bus.EventTipFailed,
		RequestID: requestID,
		Channel:   inbound.Channel,
		ChatID:    inbound.ChatID,
		MessageID: inbound.MessageID,
		Sender:    senderOf(inbound),
		Error:     err.Error(),
		Payload:   map[string]string{"category": rates.CategoryFromError(err)},
	})
}

// senderOf prefers the public handle and falls back to the transport id.
func senderOf(inbound bus.InboundMessage) string {
	if handle := strings.TrimSpace(inbound.SenderHandle); handle != "" {
		return handle
	}
	return strings.TrimSpace(inbound.SenderID)
}

func (s *Service) runHealthServer(ctx context.Context, errCh chan<- error) {
	host := strings.TrimSpace(s.cfg.Gateway.Host)
	if host == "" {
		host = defaultHealthHost
	}

	port := s.cfg.Gateway.Port
	if port <= 0 {
		port = defaultHealthPort
	}

	addr := host + ":" + strconv.Itoa(port)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway status server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start status server: %w", err)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make(map[string]channelState, len(s.channelStates))
	for name, state := range s.channelStates {
		channels[name] = state
	}
	processed := make(map[string]int, len(s.processedCount))
	for name, n := range s.processedCount {
		processed[name] = n
	}

	rateLastOK := ""
	if !s.rateLastOKAt.IsZero() {
		rateLastOK = s.rateLastOKAt.Format(time.RFC3339)
	}

	return statusResponse{
		Status:        status,
		UptimeSeconds: uptime,
		Rate:          s.rateLast,
		RateLastOKAt:  rateLastOK,
		RateLastErr:   s.rateLastErr,
		Channels:      channels,
		Processed:     processed,
	}
}

// isReady requires a running channel and a healthy last rate lookup.
func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	anyRunning := false
	for _, state := range s.channelStates {
		if state.Running {
			anyRunning = true
			break
		}
	}

	if !anyRunning {
		return false
	}

	return !s.rateLastOKAt.IsZero() && s.rateLastErr == ""
}

func (s *Service) checkRateHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, rateHealthTimeout)
	defer cancel()

	rate, err := rates.Health(ctx, s.rates, s.parser.Fiat())
	if err != nil {
		s.recordRateError(err)
		return fmt.Errorf("rate health check failed: %w", err)
	}

	s.mu.Lock()
	s.rateLastErr = ""
	s.rateLast = rate.String()
	s.rateLastOKAt = time.Now().UTC()
	s.mu.Unlock()

	return nil
}

func (s *Service) recordRateError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLastErr = err.Error()
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = state
}

func (s *Service) countProcessed(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processedCount[name]++
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
