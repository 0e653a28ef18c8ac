package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/vadrec/internal/session"
)

var outputPath string

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record one utterance and print its transcript",
	Long: `Record from the microphone until you stop speaking (or press Enter),
then print the transcript to stdout. Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().StringVarP(&outputPath, "output", "o", "", "also save the recording as a WAV file")
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(os.Stderr, cfg)

	ex, err := newExchanger(cfg, nil, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := newWaiter(cmd.ErrOrStderr())
	ctl := session.New(sessionConfig(cfg), newMicrophone(cfg), ex, session.WithObserver(w))
	defer ctl.Close()

	return recordOnce(ctx, ctl, w, cmd.InOrStdin(), cmd.OutOrStdout(), outputPath)
}

// recordController is the part of session.Controller one recording drives.
type recordController interface {
	Start(ctx context.Context) bool
	Stop() bool
	Snapshot() session.Snapshot
}

// recordOnce runs a single session. A line on in stops the recording early.
// A non-empty output receives a copy of the artifact, which the controller
// deletes when it closes.
func recordOnce(ctx context.Context, ctl recordController, w *waiter, in io.Reader, out io.Writer, output string) error {
	if !ctl.Start(ctx) {
		if msg := ctl.Snapshot().Error; msg != "" {
			return errors.New(msg)
		}
		return errors.New("session already active")
	}
	fmt.Fprintln(w.log, "Recording... press Enter to stop.")

	go func() {
		if _, err := bufio.NewReader(in).ReadString('\n'); err == nil {
			ctl.Stop()
		}
	}()

	select {
	case <-w.done:
	case <-ctx.Done():
		// stop early; a transcription already in flight is abandoned
		if !ctl.Stop() {
			return ctx.Err()
		}
		select {
		case <-w.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	snap := ctl.Snapshot()
	if output != "" && snap.Recording != nil {
		if err := copyFile(snap.Recording.Path, output); err != nil {
			return err
		}
		fmt.Fprintln(w.log, "Recording saved to", output)
	}
	if snap.Error != "" {
		return errors.New(snap.Error)
	}
	fmt.Fprintln(out, snap.Text)
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// waiter renders session progress and signals when the session returns to idle.
type waiter struct {
	log      io.Writer
	done     chan struct{}
	active   bool
	speaking bool
}

func newWaiter(log io.Writer) *waiter {
	return &waiter{log: log, done: make(chan struct{})}
}

// Notify implements session.Observer. Events arrive serialized.
func (w *waiter) Notify(e session.Event) {
	switch e.Kind {
	case session.EventSpeaking:
		if e.Speaking != w.speaking {
			w.speaking = e.Speaking
			if w.speaking {
				fmt.Fprintln(w.log, "  speaking")
			} else {
				fmt.Fprintln(w.log, "  quiet")
			}
		}
	case session.EventStatus:
		switch e.Status {
		case session.Recording:
			w.active = true
		case session.Processing:
			fmt.Fprintln(w.log, "Transcribing...")
		case session.Idle:
			if w.active {
				w.active = false
				close(w.done)
			}
		}
	}
}
