// Package audacity provides typed wrappers around common Audacity macros.
package audacity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rbright/audpipe/internal/macro"
)

// Doer performs one macro exchange and returns the raw response.
type Doer interface {
	Do(ctx context.Context, command string) (string, error)
}

// DoerFunc adapts a function to the Doer interface.
type DoerFunc func(context.Context, string) (string, error)

func (f DoerFunc) Do(ctx context.Context, command string) (string, error) {
	return f(ctx, command)
}

// Session issues macros through a Doer. Macros always apply to the most
// recently opened Audacity project window.
type Session struct {
	Doer Doer
}

func NewSession(doer Doer) Session {
	return Session{Doer: doer}
}

// Run builds b and sends it.
func (s Session) Run(ctx context.Context, b *macro.Builder) (string, error) {
	command, err := b.Build()
	if err != nil {
		return "", err
	}
	if s.Doer == nil {
		return "", errors.New("audacity session has no transport")
	}
	return s.Doer.Do(ctx, command)
}

// New creates an empty project window.
func (s Session) New(ctx context.Context) (string, error) {
	return s.Run(ctx, macro.New("New"))
}

// OpenProject opens an audio file or project with OpenProject2, which never
// shows the Open dialog.
func (s Session) OpenProject(ctx context.Context, path string, addToHistory bool) (string, error) {
	if err := requireFile(path); err != nil {
		return "", err
	}
	return s.Run(ctx, macro.New("OpenProject2").Path("Filename", path).Bool("AddToHistory", addToHistory))
}

func (s Session) Close(ctx context.Context) (string, error) {
	return s.Run(ctx, macro.New("Close"))
}

func (s Session) Play(ctx context.Context) (string, error) {
	return s.Run(ctx, macro.New("Play"))
}

func (s Session) Stop(ctx context.Context) (string, error) {
	return s.Run(ctx, macro.New("Stop"))
}

func (s Session) SelectAll(ctx context.Context) (string, error) {
	return s.Run(ctx, macro.New("SelectAll"))
}

func (s Session) Undo(ctx context.Context) (string, error) {
	return s.Run(ctx, macro.New("Undo"))
}

func (s Session) Redo(ctx context.Context) (string, error) {
	return s.Run(ctx, macro.New("Redo"))
}

// SelectTime modifies the temporal selection. Nil bounds and an empty
// relativeTo are omitted from the command.
func (s Session) SelectTime(ctx context.Context, start, end *float64, relativeTo RelativeTo) (string, error) {
	if start != nil && end != nil && *end < *start {
		return "", fmt.Errorf("select time end %.3f is before start %.3f", *end, *start)
	}

	b := macro.New("SelectTime")
	if start != nil {
		b.Float("Start", *start)
	}
	if end != nil {
		b.Float("End", *end)
	}
	if relativeTo != "" {
		b.Enum("RelativeTo", string(relativeTo), relativeToValues...)
	}
	return s.Run(ctx, b)
}

// Export writes the selected audio with Export2. Audacity only honors 1 or 2 channels.
func (s Session) Export(ctx context.Context, path string, channels int) (string, error) {
	if channels != 1 && channels != 2 {
		return "", fmt.Errorf("export channels must be 1 or 2, got %d", channels)
	}
	b := macro.New("Export2").Path("Filename", path).Int("NumChannels", channels)
	if abs, err := filepath.Abs(path); err == nil {
		if _, err := os.Stat(filepath.Dir(abs)); err != nil {
			return "", fmt.Errorf("export directory: %w", err)
		}
	}
	return s.Run(ctx, b)
}

// Message asks Audacity to echo text back.
func (s Session) Message(ctx context.Context, text string) (string, error) {
	return s.Run(ctx, macro.New("Message").String("Text", text))
}

// Tone generates a tone over the current selection.
func (s Session) Tone(ctx context.Context, frequency, amplitude float64, waveform ToneWaveform) (string, error) {
	if frequency <= 0 {
		return "", fmt.Errorf("tone frequency must be > 0, got %v", frequency)
	}
	if amplitude < 0 || amplitude > 1 {
		return "", fmt.Errorf("tone amplitude must be within [0, 1], got %v", amplitude)
	}
	if waveform == "" {
		waveform = WaveformSine
	}
	return s.Run(ctx, macro.New("Tone").
		Float("Frequency", frequency).
		Float("Amplitude", amplitude).
		Enum("Waveform", string(waveform), toneWaveformValues...))
}

// Amplify scales the selection by ratio.
func (s Session) Amplify(ctx context.Context, ratio float64, allowClipping bool) (string, error) {
	if ratio <= 0 {
		return "", fmt.Errorf("amplify ratio must be > 0, got %v", ratio)
	}
	return s.Run(ctx, macro.New("Amplify").Float("Ratio", ratio).Bool("AllowClipping", allowClipping))
}

func requireFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s file not found", path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return nil
}
