package main

import (
	"encoding/hex"
	"log/slog"
	"path/filepath"

	"github.com/scitags/flowd-nl/metrics"
)

const (
	PayloadKey string = "payload"
	FlagsKey   string = "flags"
)

var logLevelMap = map[string]slog.Level{
	"trace": metrics.LevelTrace,
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func logReplacements(groups []string, a slog.Attr) slog.Attr {
	// Remove time.
	if a.Key == slog.TimeKey && len(groups) == 0 && !logTimeFlag {
		return slog.Attr{}
	}

	// Remove the directory from the source's filename.
	if a.Key == slog.SourceKey {
		source, ok := a.Value.Any().(*slog.Source)
		if ok {
			source.File = filepath.Base(source.File)
		}
	}

	// Dump payloads as hex
	if a.Key == PayloadKey {
		if b, ok := a.Value.Any().([]byte); ok {
			return slog.String(a.Key, hex.EncodeToString(b))
		}
	}

	// Header flags read better as a bitmask
	if a.Key == FlagsKey {
		if s, ok := a.Value.Any().(interface{ String() string }); ok {
			return slog.String(a.Key, s.String())
		}
	}

	return a
}
