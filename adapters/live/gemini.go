package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/hearthside/companion/domain/repositories"
)

// GeminiEndpoint implements the LiveEndpoint interface over the Gemini
// Live API.
type GeminiEndpoint struct {
	client *genai.Client
	logger *zap.Logger
}

// NewGeminiEndpoint creates a new Gemini live endpoint.
func NewGeminiEndpoint(ctx context.Context, apiKey string, logger *zap.Logger) (*GeminiEndpoint, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiEndpoint{
		client: client,
		logger: logger,
	}, nil
}

// Connect opens a live session requesting audio-modality responses in
// the configured voice, then pumps inbound messages to the callbacks
// from a background receiver.
func (g *GeminiEndpoint) Connect(
	ctx context.Context,
	config repositories.LiveConfig,
	callbacks repositories.LiveCallbacks,
) (repositories.LiveConn, error) {
	session, err := g.client.Live.Connect(ctx, config.Model, &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: config.Voice},
			},
		},
		SystemInstruction: genai.NewContentFromText(config.SystemInstruction, genai.RoleUser),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open live session: %w", err)
	}

	conn := &geminiConn{
		session: session,
		logger:  g.logger,
	}
	go conn.receive(callbacks)

	if callbacks.OnOpen != nil {
		callbacks.OnOpen()
	}
	return conn, nil
}

// geminiConn wraps one open live session.
type geminiConn struct {
	session   *genai.Session
	logger    *zap.Logger
	closed    atomic.Bool
	closeOnce sync.Once
}

// SendMedia pushes one realtime chunk. Failures while the connection is
// mid-teardown are surfaced to the caller, which treats delivery as
// best effort.
func (c *geminiConn) SendMedia(ctx context.Context, chunk repositories.MediaChunk) error {
	if c.closed.Load() {
		return errors.New("live connection is closed")
	}
	err := c.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{
			MIMEType: chunk.MIMEType,
			Data:     chunk.Data,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send %s chunk: %w", chunk.MIMEType, err)
	}
	return nil
}

// Close shuts the live session down. Safe to call repeatedly.
func (c *geminiConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.session.Close()
	})
	return err
}

// receive pumps server messages until the session ends. Messages
// without an audio payload are dropped here so the session layer only
// ever sees playable chunks.
func (c *geminiConn) receive(callbacks repositories.LiveCallbacks) {
	for {
		msg, err := c.session.Receive()
		if err != nil {
			if c.closed.Load() || errors.Is(err, io.EOF) {
				if callbacks.OnClose != nil {
					callbacks.OnClose()
				}
				return
			}
			if callbacks.OnError != nil {
				callbacks.OnError(err)
			}
			return
		}

		audio := extractAudio(msg)
		if audio == nil {
			continue
		}
		if callbacks.OnMessage != nil {
			callbacks.OnMessage(repositories.ServerMessage{Audio: audio})
		}
	}
}

// extractAudio pulls the first inline audio payload out of a server
// message, or nil when the message carries none.
func extractAudio(msg *genai.LiveServerMessage) []byte {
	if msg == nil || msg.ServerContent == nil || msg.ServerContent.ModelTurn == nil {
		return nil
	}
	for _, part := range msg.ServerContent.ModelTurn.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data
		}
	}
	return nil
}
