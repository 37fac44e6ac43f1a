package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hearthside/companion/live"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Messages from the dashboard to the server.
const (
	MessageTypeSessionStart MessageType = "session_start"
	MessageTypeSessionStop  MessageType = "session_stop"
	MessageTypeCaptureReady MessageType = "capture_ready"
	MessageTypeCaptureError MessageType = "capture_error"
	MessageTypeVideoFrame   MessageType = "video_frame"
)

// Messages from the server to the dashboard.
const (
	MessageTypeSessionState   MessageType = "session_state"
	MessageTypeCaptureRequest MessageType = "capture_request"
	MessageTypeCaptureStop    MessageType = "capture_stop"
	MessageTypeAudioOut       MessageType = "audio_out"
	MessageTypeOutputActive   MessageType = "output_active"
	MessageTypeNotice         MessageType = "notice"
	MessageTypeError          MessageType = "error"
)

// Binary WebSocket frames carry raw little-endian float32 mono audio
// samples from the dashboard's microphone; they have no JSON envelope.

// BaseMessage defines the common structure for all text messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// SessionStartMessage asks the server to start a companion session.
type SessionStartMessage struct {
	BaseMessage
}

// SessionStopMessage asks the server to stop the running session.
type SessionStopMessage struct {
	BaseMessage
}

// CaptureRequestMessage asks the dashboard to acquire mic and camera
// with the given constraints.
type CaptureRequestMessage struct {
	BaseMessage
	Constraints live.CaptureConstraints `json:"constraints"`
}

// CaptureReadyMessage confirms the dashboard acquired its devices.
type CaptureReadyMessage struct {
	BaseMessage
	SampleRate int `json:"sample_rate"`
}

// CaptureErrorMessage reports a device acquisition failure, typically
// a denied permission prompt.
type CaptureErrorMessage struct {
	BaseMessage
	Message string `json:"message"`
}

// CaptureStopMessage tells the dashboard to release mic and camera.
type CaptureStopMessage struct {
	BaseMessage
}

// VideoFrameMessage carries one camera frame as base64 RGBA pixels.
type VideoFrameMessage struct {
	BaseMessage
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Pixels string `json:"pixels"` // base64, 4 bytes per pixel, row major
}

// SessionStateMessage reports a session state transition.
type SessionStateMessage struct {
	BaseMessage
	State string `json:"state"`
}

// AudioOutMessage carries one scheduled chunk of companion speech. All
// offsets are milliseconds from the session epoch on the server's
// output clock; the dashboard plays the PCM at the given slot.
type AudioOutMessage struct {
	BaseMessage
	Data          string `json:"data"` // base64 16-bit LE PCM
	SampleRate    int    `json:"sample_rate"`
	StartMs       int64  `json:"start_ms"`
	DurationMs    int64  `json:"duration_ms"`
	ActiveUntilMs int64  `json:"active_until_ms"`
}

// OutputActiveMessage drives the speaking indicator on the dashboard.
type OutputActiveMessage struct {
	BaseMessage
	Active bool `json:"active"`
}

// NoticeMessage carries a user-facing notice, such as a failed device
// acquisition.
type NoticeMessage struct {
	BaseMessage
	Message string `json:"message"`
}

// ErrorMessage reports a server-side failure to the dashboard.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// DecodeMessage parses an incoming text message into its typed form.
func DecodeMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeSessionStart:
		var msg SessionStartMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid session start message: %w", err)
		}
		return &msg, nil

	case MessageTypeSessionStop:
		var msg SessionStopMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid session stop message: %w", err)
		}
		return &msg, nil

	case MessageTypeCaptureReady:
		var msg CaptureReadyMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid capture ready message: %w", err)
		}
		return &msg, nil

	case MessageTypeCaptureError:
		var msg CaptureErrorMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid capture error message: %w", err)
		}
		return &msg, nil

	case MessageTypeVideoFrame:
		var msg VideoFrameMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid video frame message: %w", err)
		}
		if msg.Width <= 0 || msg.Height <= 0 {
			return nil, fmt.Errorf("invalid video frame geometry %dx%d", msg.Width, msg.Height)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeError,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Code:    code,
		Message: message,
	}
}

// CreateNoticeMessage creates a user-facing notice.
func CreateNoticeMessage(message string) *NoticeMessage {
	return &NoticeMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeNotice,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Message: message,
	}
}

// CreateOutputActiveMessage creates a speaking indicator update.
func CreateOutputActiveMessage(active bool) *OutputActiveMessage {
	return &OutputActiveMessage{
		BaseMessage: BaseMessage{Type: MessageTypeOutputActive},
		Active:      active,
	}
}

// CreateSessionStateMessage creates a session state notification.
func CreateSessionStateMessage(state live.State) *SessionStateMessage {
	return &SessionStateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeSessionState,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		State: string(state),
	}
}

// CreateAudioOutMessage wraps one scheduled playback chunk.
func CreateAudioOutMessage(data string, sampleRate int, chunk live.ScheduledChunk) *AudioOutMessage {
	return &AudioOutMessage{
		BaseMessage: BaseMessage{
			Type: MessageTypeAudioOut,
		},
		Data:          data,
		SampleRate:    sampleRate,
		StartMs:       chunk.Start.Milliseconds(),
		DurationMs:    chunk.Duration.Milliseconds(),
		ActiveUntilMs: chunk.ActiveUntil.Milliseconds(),
	}
}
