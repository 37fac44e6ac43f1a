package repositories

import "context"

// Chunk MIME types exchanged with the remote conversational endpoint.
const (
	MIMEAudioPCM16k = "audio/pcm;rate=16000"
	MIMEImageJPEG   = "image/jpeg"
)

// MediaChunk is one discrete unit of audio or image data sent to the
// remote endpoint. Data is raw bytes; the adapter applies whatever
// transport encoding the vendor protocol requires.
type MediaChunk struct {
	MIMEType string
	Data     []byte
}

// ServerMessage is one inbound event from the remote endpoint. Audio,
// when present, is decoded PCM16LE mono at the endpoint's output rate.
type ServerMessage struct {
	Audio []byte
}

// LiveCallbacks wires the four connection lifecycle events. OnMessage
// may fire any number of times between OnOpen and OnClose.
type LiveCallbacks struct {
	OnOpen    func()
	OnMessage func(msg ServerMessage)
	OnError   func(err error)
	OnClose   func()
}

// LiveConfig describes the session open request: desired voice, the
// interpolated persona instruction, and the model identity.
type LiveConfig struct {
	Model             string
	Voice             string
	SystemInstruction string
}

// LiveConn is an open bidirectional connection to the remote endpoint.
type LiveConn interface {
	// SendMedia pushes one outbound chunk. Delivery is best effort:
	// a failure during teardown is expected and safe to drop.
	SendMedia(ctx context.Context, chunk MediaChunk) error
	Close() error
}

// LiveEndpoint abstracts the remote conversational streaming service.
// Connect blocks until the handshake settles, then reports lifecycle
// through the callbacks.
type LiveEndpoint interface {
	Connect(ctx context.Context, config LiveConfig, callbacks LiveCallbacks) (LiveConn, error)
}
