package audio

import (
	"encoding/binary"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"

	apperrors "github.com/GriffinCanCode/vadrec/internal/errors"
)

// Artifact is the finalized recording of one session. It is immutable.
type Artifact struct {
	ID         string
	Data       []byte // complete WAV file
	Path       string // local copy for playback
	MIMEType   string
	SampleRate int
	Samples    int
	Chunks     int
	Duration   time.Duration
}

// Remove deletes the local copy.
func (a Artifact) Remove() error {
	if a.Path == "" {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Recorder accumulates PCM chunks in arrival order.
type Recorder struct {
	stream *Stream
	cfg    StreamConfig

	mu        sync.Mutex
	chunks    [][]byte
	stopped   bool
	finalized bool
}

func newRecorder(s *Stream, cfg StreamConfig) *Recorder {
	return &Recorder{stream: s, cfg: cfg}
}

func (r *Recorder) append(samples []int16) {
	chunk := make([]byte, len(samples)*SampleByteSize)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(chunk[i*SampleByteSize:], uint16(s))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || len(chunk) == 0 {
		return
	}
	r.chunks = append(r.chunks, chunk)
}

// Stop ends capture. Chunks arriving afterwards are dropped. Idempotent.
func (r *Recorder) Stop() {
	r.mu.Lock()
	already := r.stopped
	r.stopped = true
	r.mu.Unlock()

	if !already && r.stream != nil {
		r.stream.detach(r)
	}
}

// Chunks returns the number of chunks buffered so far.
func (r *Recorder) Chunks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks)
}

// Finalize stops the recorder, concatenates the buffered chunks in order and
// writes them as a WAV artifact. It may be called once.
func (r *Recorder) Finalize() (Artifact, error) {
	r.Stop()

	r.mu.Lock()
	if r.finalized {
		r.mu.Unlock()
		return Artifact{}, ErrAlreadyFinalized
	}
	r.finalized = true
	chunks := r.chunks
	r.chunks = nil
	r.mu.Unlock()

	size := 0
	for _, c := range chunks {
		size += len(c)
	}
	pcm := make([]byte, 0, size)
	for _, c := range chunks {
		pcm = append(pcm, c...)
	}

	art, err := writeWAV(r.cfg, pcm)
	if err != nil {
		return Artifact{}, apperrors.Wrap(err, apperrors.CodeCaptureFailed, "finalize recording")
	}
	art.Chunks = len(chunks)
	return art, nil
}

// writeWAV encodes little-endian PCM16 mono into a WAV file under dir.
func writeWAV(cfg StreamConfig, pcm []byte) (Artifact, error) {
	f, err := os.CreateTemp(cfg.ArtifactDir, ArtifactPattern)
	if err != nil {
		return Artifact{}, err
	}
	path := f.Name()
	fail := func(err error) (Artifact, error) {
		_ = f.Close()
		_ = os.Remove(path)
		return Artifact{}, err
	}

	samples := len(pcm) / SampleByteSize
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  cfg.SampleRate,
		},
		Data:           make([]int, samples),
		SourceBitDepth: 16,
	}
	for i := range samples {
		buf.Data[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*SampleByteSize:])))
	}

	// Write emits the RIFF header even for an empty buffer.
	enc := wav.NewEncoder(f, cfg.SampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return fail(err)
	}
	if err := enc.Close(); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return Artifact{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		_ = os.Remove(path)
		return Artifact{}, err
	}

	return Artifact{
		ID:         uuid.NewString(),
		Data:       data,
		Path:       path,
		MIMEType:   ArtifactMIMEType,
		SampleRate: cfg.SampleRate,
		Samples:    samples,
		Duration:   time.Duration(samples) * time.Second / time.Duration(cfg.SampleRate),
	}, nil
}
