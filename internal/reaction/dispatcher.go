package reaction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Hara602/wheaSentry/internal/analysis"
	"github.com/Hara602/wheaSentry/internal/config"
	"github.com/Hara602/wheaSentry/internal/metrics"
	"github.com/Hara602/wheaSentry/internal/model"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var ErrAction = errors.New("reaction action failed")

// Dispatcher runs the message, audio and execute actions for an alert.
type Dispatcher struct {
	display  Display
	audio    Audio
	launcher Launcher

	sounds    [config.SoundCount]Sound
	exists    func(path string) bool
	inspector *analysis.TypeInspector
	log       *zap.Logger
}

type Option func(*Dispatcher)

func WithLogger(log *zap.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

func WithSounds(sounds [config.SoundCount]Sound) Option {
	return func(d *Dispatcher) { d.sounds = sounds }
}

// WithFileCheck replaces the os.Stat based existence check.
func WithFileCheck(exists func(path string) bool) Option {
	return func(d *Dispatcher) { d.exists = exists }
}

// New builds a dispatcher on the platform's display, audio and launcher.
func New(opts ...Option) *Dispatcher {
	return NewDispatcher(newDisplay(), newAudio(), newLauncher(), opts...)
}

func NewDispatcher(display Display, audio Audio, launcher Launcher, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		display:   display,
		audio:     audio,
		launcher:  launcher,
		sounds:    DefaultSounds(),
		exists:    fileExists,
		inspector: analysis.NewTypeInspector(),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// MessageText is the text shown for cfg: the trimmed custom text when it is
// enabled and non-empty, the default otherwise.
func MessageText(cfg config.Reaction) string {
	if cfg.MessageCustomEnabled {
		if text := strings.TrimSpace(cfg.MessageText); text != "" {
			return text
		}
	}
	return DefaultMessage
}

// Dispatch runs every enabled action in order. A failing action is logged
// and does not stop the ones after it; the failures come back combined.
func (d *Dispatcher) Dispatch(ctx context.Context, ev model.AlertEvent, cfg config.Reaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var err error
	if cfg.MessageEnabled {
		err = multierr.Append(err, d.run("message", func() error { return d.showMessage(cfg) }))
	}
	if cfg.AudioEnabled {
		err = multierr.Append(err, d.run("audio", func() error { return d.playAudio(cfg) }))
	}
	if cfg.ExecuteEnabled {
		err = multierr.Append(err, d.run("execute", func() error { return d.execute(cfg) }))
	}
	if err != nil {
		d.log.Warn("Reaction finished with errors",
			zap.String("session", ev.SessionID),
			zap.Int("count", ev.MatchCount),
			zap.Error(err))
	}
	return err
}

// run isolates one action, panics included.
func (d *Dispatcher) run(action string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: panic: %v", ErrAction, action, r)
		}
		result := "ok"
		if err != nil {
			result = "error"
			d.log.Error("Reaction action failed", zap.String("action", action), zap.Error(err))
		}
		metrics.ActionsTotal.WithLabelValues(action, result).Inc()
	}()

	if err := fn(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrAction, action, err)
	}
	return nil
}

func (d *Dispatcher) showMessage(cfg config.Reaction) error {
	text := MessageText(cfg)
	if err := d.display.ShowInfo(Title, text); err != nil {
		return err
	}
	d.log.Info("Message shown", zap.String("text", text))
	return nil
}

// playAudio plays the selected asset, or the system beep when no asset is
// selected or the file is missing. A playback failure does not fall back.
func (d *Dispatcher) playAudio(cfg config.Reaction) error {
	if idx := cfg.AudioSelectedIndex; idx != nil && *idx >= 0 && *idx < len(d.sounds) {
		sound := d.sounds[*idx]
		if d.exists(sound.Path) {
			d.checkSound(sound.Path)
			if err := d.audio.PlayAsync(sound.Path); err != nil {
				return err
			}
			d.log.Info("Sound played", zap.String("sound", sound.Name), zap.String("path", sound.Path))
			return nil
		}
		d.log.Warn("Sound asset missing, using system beep", zap.String("path", sound.Path))
	}
	if err := d.audio.Beep(); err != nil {
		return err
	}
	d.log.Info("System beep played")
	return nil
}

func (d *Dispatcher) execute(cfg config.Reaction) error {
	path := cfg.ExecutePath
	if path == "" || !d.exists(path) {
		d.log.Warn("Program path is empty or does not exist", zap.String("path", path))
		return nil
	}
	d.checkProgram(path)

	args := strings.TrimSpace(cfg.ExecuteArgs)
	if err := d.launcher.Launch(path, args); err != nil {
		return err
	}
	d.log.Info("Program launched", zap.String("path", path), zap.String("args", args))

	// 启动成功的提示音
	if err := d.audio.Beep(); err != nil {
		return fmt.Errorf("confirmation beep: %w", err)
	}
	return nil
}

func (d *Dispatcher) checkSound(path string) {
	res, err := d.inspector.Inspect(path)
	if err != nil || res.Audio {
		return
	}
	d.log.Warn("Sound asset does not look like WAV", zap.String("path", path), zap.String("real", res.RealExt))
}

func (d *Dispatcher) checkProgram(path string) {
	res, err := d.inspector.Inspect(path)
	if err != nil {
		return
	}
	if res.IsMasquerade {
		d.log.Warn("Program type mismatch", zap.String("path", path), zap.String("detail", res.Message))
	} else if !res.Executable {
		d.log.Warn("Program is not a recognised executable or script",
			zap.String("path", path), zap.String("real", res.RealExt))
	}
}
