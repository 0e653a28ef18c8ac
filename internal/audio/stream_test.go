package audio_test

import (
	"bytes"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/go-audio/wav"

	"github.com/GriffinCanCode/vadrec/internal/audio"
	"github.com/GriffinCanCode/vadrec/internal/audio/audiotest"
)

func newStream(t *testing.T) (*audio.Stream, *audiotest.Mic) {
	t.Helper()
	mic := audiotest.NewMic()
	s := audio.NewStream(mic, audio.StreamConfig{SampleRate: 8000, FrameSize: 16, ArtifactDir: t.TempDir()})
	t.Cleanup(func() { _ = s.Close() })
	return s, mic
}

func TestRecorderKeepsArrivalOrder(t *testing.T) {
	s, mic := newStream(t)
	rec := s.Record()

	mic.Push([]int16{1, 2, 3})
	mic.Push([]int16{4, 5})
	mic.Push([]int16{-1})

	art, err := rec.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	t.Cleanup(func() { _ = art.Remove() })

	if art.Chunks != 3 {
		t.Errorf("Chunks = %d, want 3", art.Chunks)
	}
	if art.Samples != 6 {
		t.Errorf("Samples = %d, want 6", art.Samples)
	}
	if art.MIMEType != "audio/wav" || art.ID == "" {
		t.Errorf("unexpected artifact metadata: %+v", art)
	}

	dec := wav.NewDecoder(bytes.NewReader(art.Data))
	if !dec.IsValidFile() {
		t.Fatal("artifact is not a valid WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []int{1, 2, 3, 4, 5, -1}
	if len(buf.Data) != len(want) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Data), len(want))
	}
	for i := range want {
		if buf.Data[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, buf.Data[i], want[i])
		}
	}
	if int(dec.SampleRate) != 8000 || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Errorf("format = %d Hz %d ch %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
}

func TestFinalizeEmptyRecording(t *testing.T) {
	s, _ := newStream(t)
	rec := s.Record()

	art, err := rec.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	t.Cleanup(func() { _ = art.Remove() })

	if art.Chunks != 0 || art.Samples != 0 {
		t.Errorf("got %d chunks %d samples, want empty", art.Chunks, art.Samples)
	}
	if art.Duration != 0 {
		t.Errorf("Duration = %v", art.Duration)
	}
	if _, err := os.Stat(art.Path); err != nil {
		t.Errorf("artifact file missing: %v", err)
	}
	if len(art.Data) < 44 || !bytes.HasPrefix(art.Data, []byte("RIFF")) {
		t.Fatalf("empty artifact is not a WAV file: %q", art.Data)
	}
	if !wav.NewDecoder(bytes.NewReader(art.Data)).IsValidFile() {
		t.Error("empty artifact does not decode")
	}
}

func TestFinalizeTwice(t *testing.T) {
	s, _ := newStream(t)
	rec := s.Record()

	art, err := rec.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	t.Cleanup(func() { _ = art.Remove() })

	if _, err := rec.Finalize(); !errors.Is(err, audio.ErrAlreadyFinalized) {
		t.Errorf("second Finalize err = %v, want ErrAlreadyFinalized", err)
	}
}

func TestChunksAfterStopDropped(t *testing.T) {
	s, mic := newStream(t)
	rec := s.Record()

	mic.Push([]int16{7})
	rec.Stop()
	mic.Push([]int16{8})

	if got := rec.Chunks(); got != 1 {
		t.Errorf("Chunks = %d, want 1", got)
	}
}

func TestArtifactDuration(t *testing.T) {
	s, mic := newStream(t)
	rec := s.Record()
	mic.Push(audiotest.Constant(4000, 100))

	art, err := rec.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	t.Cleanup(func() { _ = art.Remove() })

	if art.Duration != 500*time.Millisecond {
		t.Errorf("Duration = %v, want 500ms", art.Duration)
	}
}

func TestArtifactRemove(t *testing.T) {
	s, _ := newStream(t)
	art, err := s.Record().Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := art.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(art.Path); !os.IsNotExist(err) {
		t.Errorf("file still present: %v", err)
	}
	if err := art.Remove(); err != nil {
		t.Errorf("second Remove: %v", err)
	}
}

func TestStreamCloseIdempotent(t *testing.T) {
	s, mic := newStream(t)
	rec := s.Record()

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !s.Closed() || !mic.Closed() {
		t.Error("stream or mic not closed")
	}

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("pump did not exit")
	}

	if mic.Push([]int16{1}) {
		t.Error("push accepted after close")
	}
	if rec.Chunks() != 0 {
		t.Error("recorder captured after close")
	}
}

func TestStreamFeedsAnalyser(t *testing.T) {
	s, mic := newStream(t)
	mic.Push(audiotest.Constant(16, -32768))

	dst := make([]byte, 16)
	s.Analyser().ByteTimeDomainData(dst)
	for i, b := range dst {
		if b != 0 {
			t.Fatalf("dst[%d] = %d, want 0", i, b)
		}
	}
}

func TestRecordReplacesPrevious(t *testing.T) {
	s, mic := newStream(t)
	first := s.Record()
	second := s.Record()

	mic.Push([]int16{1, 2})

	if first.Chunks() != 0 {
		t.Error("replaced recorder still capturing")
	}
	if second.Chunks() != 1 {
		t.Errorf("second.Chunks = %d, want 1", second.Chunks())
	}
}
