package media

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/troikatech/voice-agent/pkg/audio"
)

// Writer sends media events back to the telephony provider. Writes are
// serialized; gorilla connections do not allow concurrent writers.
type Writer struct {
	conn      *websocket.Conn
	mu        sync.Mutex
	chunkSize int
	logger    *zap.Logger
}

// NewWriter wraps a provider WebSocket connection. chunkSize 0 uses the
// provider's expected 640-byte frames (20ms at 16kHz mono 16-bit).
func NewWriter(conn *websocket.Conn, chunkSize int, logger *zap.Logger) *Writer {
	if chunkSize <= 0 {
		chunkSize = audio.DefaultChunkSize
	}
	return &Writer{conn: conn, chunkSize: chunkSize, logger: logger}
}

func (w *Writer) send(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal media event: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, payload)
}

// StreamAudio chunks PCM audio into media events and follows them with
// a mark event so playback completion can be observed.
func (w *Writer) StreamAudio(streamSID string, pcm []byte, markName string) error {
	chunks := audio.ChunkPCM(pcm, w.chunkSize)
	for _, chunk := range chunks {
		event := map[string]interface{}{
			"event":      "media",
			"stream_sid": streamSID,
			"media": map[string]string{
				"payload": audio.EncodePCMChunkToBase64(chunk),
			},
		}
		if err := w.send(event); err != nil {
			return fmt.Errorf("failed to send media chunk: %w", err)
		}
	}

	w.logger.Debug("Streamed audio",
		zap.String("stream_sid", streamSID),
		zap.Int("chunks", len(chunks)),
		zap.Int("bytes", len(pcm)))

	if markName != "" {
		return w.SendMark(streamSID, markName)
	}
	return nil
}

// SendMark asks the provider to echo a mark once queued audio before it
// has played out.
func (w *Writer) SendMark(streamSID, name string) error {
	return w.send(map[string]interface{}{
		"event":      "mark",
		"stream_sid": streamSID,
		"mark":       map[string]string{"name": name},
	})
}

// SendClear drops any audio the provider has buffered but not played.
// Used for barge-in.
func (w *Writer) SendClear(streamSID string) error {
	return w.send(map[string]interface{}{
		"event":      "clear",
		"stream_sid": streamSID,
	})
}
