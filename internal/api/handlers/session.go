package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/troikatech/voice-agent/internal/orchestrator"
	"github.com/troikatech/voice-agent/internal/store"
	"github.com/troikatech/voice-agent/internal/tools"
	"github.com/troikatech/voice-agent/pkg/audio"
	apperrors "github.com/troikatech/voice-agent/pkg/errors"
	"github.com/troikatech/voice-agent/pkg/media"
	"github.com/troikatech/voice-agent/pkg/phone"
	"github.com/troikatech/voice-agent/pkg/stt"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// The telephony provider connects from its own origin.
		return true
	},
}

// validateSessionToken checks the media-session JWT handed out when the
// call was provisioned.
func (h *Handler) validateSessionToken(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(h.cfg.JWTSecret), nil
	},
		jwt.WithIssuer(h.cfg.JWTIssuer),
		jwt.WithAudience(h.cfg.JWTAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}

// VoiceWebSocket is the telephony media-session endpoint. The provider
// connects here once a call is answered and streams PCM both ways.
func (h *Handler) VoiceWebSocket(c *gin.Context) {
	if err := h.validateSessionToken(c.Query("token")); err != nil {
		h.logger.Warn("Media session rejected, bad token", zap.Error(err))
		apperrors.Unauthorized(c, "invalid session token")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.runMediaSession(c.Request.Context(), conn, c.Query("tenant_id"), c.Query("call_id"))
}

// runMediaSession drives one call over the provider WebSocket: waits
// for the start event, validates the session metadata bundle, then
// pumps audio between the provider and the transcriber while the
// orchestrator runs the turn loop.
func (h *Handler) runMediaSession(parent context.Context, conn *websocket.Conn, queryTenantID, queryCallID string) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	start, err := h.awaitStartEvent(conn)
	if err != nil {
		h.logger.Warn("Media session ended before start event", zap.Error(err))
		return
	}

	tenantID := firstNonEmptyString(start.CustomParameters["tenant_id"], queryTenantID)
	callID := firstNonEmptyString(start.CustomParameters["call_id"], queryCallID)
	if tenantID == "" || callID == "" {
		// Fatal configuration error: the turn loop must never start.
		h.logger.Error("Media session missing tenant or call id",
			zap.String("stream_sid", start.StreamSID),
			zap.String("telephony_call_id", start.CallSID))
		return
	}

	call, err := h.resolveCall(ctx, tenantID, callID, start)
	if err != nil {
		h.logger.Error("Failed to resolve call for media session",
			zap.String("call_id", callID),
			zap.Error(err))
		return
	}

	tenantCfg, err := h.tenants.Load(ctx, tenantID)
	if err != nil {
		h.logger.Error("Failed to load tenant for media session",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		return
	}

	if start.CallSID != "" && call.TelephonyCallID == "" {
		legID := start.CallSID
		if err := h.store.UpdateCall(ctx, call.ID, &store.CallUpdate{TelephonyCallID: &legID}); err != nil {
			h.logger.Warn("Failed to record telephony leg id", zap.Error(err))
		}
		call.TelephonyCallID = legID
	}

	registry := tools.NewRegistry(tools.CallContext{
		TenantID:        tenantID,
		CallID:          call.ID,
		CallerPhone:     call.CallerPhone,
		TelephonyCallID: call.TelephonyCallID,
	}, tools.Deps{
		Store:    h.store,
		Tenant:   tenantCfg,
		Calendar: h.calendar,
		CRM:      h.crm,
		Carrier:  h.carrier,
		Logger:   h.logger,
	})

	sampleRate := start.SampleRate
	if sampleRate == 0 {
		sampleRate = h.cfg.MediaSampleRate
	}

	sttStream, err := h.transcriber.Stream(ctx, stt.Options{
		SampleRate: h.cfg.MediaSampleRate,
		Language:   h.cfg.DeepgramLanguage,
		Model:      h.cfg.DeepgramModel,
	})
	if err != nil {
		h.logger.Error("Failed to open transcriber stream", zap.Error(err))
		return
	}
	defer sttStream.Close()

	writer := media.NewWriter(conn, 0, h.logger)
	speak := func(ctx context.Context, pcm []byte) error {
		if sampleRate == 8000 {
			pcm = audio.Resample16kTo8k(pcm)
		}
		return writer.StreamAudio(start.StreamSID, pcm, "utterance-"+uuid.NewString())
	}

	accountant := orchestrator.NewAccountant(call.ID, h.store, h.rates, h.logger)
	session, err := orchestrator.NewSession(orchestrator.Config{
		Call:        call,
		Tenant:      tenantCfg,
		Store:       h.store,
		Registry:    registry,
		Responder:   h.responder,
		Synthesizer: h.synthesizer,
		Speak:       speak,
		Accountant:  accountant,
		VoiceID:     tenantCfg.VoiceID,
		Logger:      h.logger,
	})
	if err != nil {
		h.logger.Error("Failed to start session", zap.Error(err))
		return
	}

	h.logger.Info("Media session started",
		zap.String("call_id", call.ID.Hex()),
		zap.String("tenant_id", tenantID),
		zap.String("caller", phone.Mask(call.CallerPhone)),
		zap.Int("sample_rate", sampleRate))

	events := bargeInEvents(sttStream.Events(), func() {
		if err := writer.SendClear(start.StreamSID); err != nil {
			h.logger.Debug("Failed to clear queued provider audio", zap.Error(err))
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		session.Run(ctx, events)
	}()

	h.pumpProviderAudio(conn, sttStream, sampleRate)

	cancel()
	<-done

	h.reconcileTelephonyStatus(context.WithoutCancel(ctx), call)
}

// bargeInEvents forwards transcriber events and drops queued agent
// audio whenever the caller finishes an utterance, so a stale reply is
// not played over the caller's next turn.
func bargeInEvents(in <-chan stt.Event, clear func()) <-chan stt.Event {
	out := make(chan stt.Event)
	go func() {
		defer close(out)
		for event := range in {
			if event.Kind == stt.EventFinal && event.Text != "" {
				clear()
			}
			out <- event
		}
	}()
	return out
}

// reconcileTelephonyStatus records the carrier's view of the leg once
// the media session ends. Webhook delivery is not guaranteed, so the
// carrier is the authority on how the leg finished.
func (h *Handler) reconcileTelephonyStatus(ctx context.Context, call *store.Call) {
	if h.carrier == nil || call.TelephonyCallID == "" {
		return
	}
	status, err := h.carrier.GetCallStatus(ctx, call.TelephonyCallID)
	if err != nil {
		h.logger.Warn("Failed to fetch carrier leg status",
			zap.String("call_id", call.ID.Hex()),
			zap.Error(err))
		return
	}
	if status.Status == "" {
		return
	}
	if err := h.store.UpdateCall(ctx, call.ID, &store.CallUpdate{TelephonyStatus: &status.Status}); err != nil {
		h.logger.Warn("Failed to record carrier leg status",
			zap.String("call_id", call.ID.Hex()),
			zap.Error(err))
	}
}

// awaitStartEvent reads provider frames until the start event arrives.
func (h *Handler) awaitStartEvent(conn *websocket.Conn) (*media.StartInfo, error) {
	deadline := time.Now().Add(15 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	defer conn.SetReadDeadline(time.Time{})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		event, err := media.ParseEvent(raw)
		if err != nil {
			h.logger.Warn("Unparseable provider event before start", zap.Error(err))
			continue
		}
		switch event.Kind {
		case media.EventStart:
			return event.Start, nil
		case media.EventConnected:
			continue
		case media.EventStop:
			return nil, fmt.Errorf("provider closed before start")
		}
	}
}

// pumpProviderAudio forwards caller audio into the transcriber until
// the provider stops or the connection drops.
func (h *Handler) pumpProviderAudio(conn *websocket.Conn, sttStream stt.Stream, sampleRate int) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		event, err := media.ParseEvent(raw)
		if err != nil {
			h.logger.Debug("Dropping unparseable provider event", zap.Error(err))
			continue
		}
		switch event.Kind {
		case media.EventMedia:
			frame := event.Audio
			if sampleRate == 8000 {
				frame = audio.Resample8kTo16k(frame)
			}
			if err := sttStream.Write(frame); err != nil {
				h.logger.Warn("Transcriber write failed", zap.Error(err))
				return
			}
		case media.EventStop:
			return
		}
	}
}

// resolveCall finds the call row for this media session, creating it if
// the status webhook has not arrived yet.
func (h *Handler) resolveCall(ctx context.Context, tenantID, callID string, start *media.StartInfo) (*store.Call, error) {
	if oid, err := primitive.ObjectIDFromHex(callID); err == nil {
		return h.store.GetCall(ctx, oid)
	}

	call, err := h.store.GetCallBySession(ctx, callID)
	if err == nil {
		return call, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	caller := start.From
	if normalized, nerr := phone.Normalize(start.From); nerr == nil {
		caller = normalized
	}
	call = &store.Call{
		TenantID:        tenantID,
		Direction:       "inbound",
		CallerPhone:     caller,
		CalleePhone:     start.To,
		SessionID:       callID,
		TelephonyCallID: start.CallSID,
	}
	if err := h.store.CreateCall(ctx, call); err != nil {
		return nil, err
	}
	return call, nil
}

func firstNonEmptyString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
