package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"scoreboard/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	sinkMu sync.RWMutex
	sink   io.Writer = os.Stdout
	file   *sizeLimitedWriter
)

// Init configures the global zerolog logger. When cfg.File is set, output is
// mirrored to a size-capped file alongside stdout.
func Init(cfg config.LogConfig) {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level, zerolog.InfoLevel))

	var out io.Writer = os.Stdout
	if strings.TrimSpace(cfg.File) != "" {
		w, err := newSizeLimitedWriter(cfg.File, cfg.MaxMB)
		if err != nil {
			log.Error().Err(err).Str("path", cfg.File).Msg("open log file failed, logging to stdout only")
		} else {
			setFile(w)
			out = io.MultiWriter(os.Stdout, w)
		}
	}
	setSink(out)

	var console io.Writer = out
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: out}
	}
	logger := zerolog.New(console).With().Timestamp().Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
}

// Writer is the raw sink the logger writes to, for handlers that emit their
// own structured lines.
func Writer() io.Writer {
	sinkMu.RLock()
	defer sinkMu.RUnlock()
	return sink
}

// Close flushes and closes the log file, if one was opened.
func Close() error {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	sink = os.Stdout
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}

func ParseLevel(v string, fallback zerolog.Level) zerolog.Level {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return fallback
	}
	parsed, err := zerolog.ParseLevel(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func setSink(w io.Writer) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	sink = w
}

func setFile(w *sizeLimitedWriter) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if file != nil {
		_ = file.Close()
	}
	file = w
}
