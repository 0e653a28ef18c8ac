package audio

import "errors"

// Capture defaults
const (
	DefaultSampleRate = 16000
	DefaultFrameSize  = 2048

	// PortAudio buffer per read, ~64ms at 16kHz
	FramesPerBuffer = 1024

	// PCM16 byte size for chunk encoding
	SampleByteSize = 2

	ArtifactMIMEType = "audio/wav"
	ArtifactPattern  = "recording-*.wav"
)

var (
	ErrInputClosed      = errors.New("audio input closed")
	ErrAlreadyFinalized = errors.New("recorder already finalized")
)
