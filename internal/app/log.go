package app

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

var Logger = zerolog.Nop()

// modules log levels
var modules = map[string]string{}

// GetLogger returns Logger at the level configured for module, if any.
func GetLogger(module string) zerolog.Logger {
	if s, ok := modules[module]; ok {
		lvl, err := zerolog.ParseLevel(s)
		if err == nil {
			return Logger.Level(lvl)
		}
		Logger.Warn().Err(err).Str("module", module).Msg("[app] log level")
	}
	return Logger
}

// InitLogger supports:
// - output: stderr, stdout or empty to disable
// - format: empty (autodetect color support), color, json, text
// - time:   empty (disable timestamp) or a time layout
// - level:  disabled, trace, debug, info, warn, error...
// Any other key sets the level of the module of that name.
func InitLogger(cfg map[string]string) {
	modules = cfg

	var writer io.Writer
	switch cfg["output"] {
	case "stderr":
		writer = os.Stderr
	case "stdout":
		writer = os.Stdout
	default:
		Logger = zerolog.Nop()
		return
	}

	timeFormat := cfg["time"]

	if format := cfg["format"]; format != "json" {
		console := &zerolog.ConsoleWriter{Out: writer}

		switch format {
		case "text":
			console.NoColor = true
		case "color":
			console.NoColor = false
		default:
			console.NoColor = !isatty.IsTerminal(writer.(*os.File).Fd())
		}

		if timeFormat != "" {
			console.TimeFormat = timeFormat
		} else {
			console.PartsOrder = []string{
				zerolog.LevelFieldName,
				zerolog.CallerFieldName,
				zerolog.MessageFieldName,
			}
		}
		writer = console
	}

	lvl, _ := zerolog.ParseLevel(cfg["level"])
	Logger = zerolog.New(writer).Level(lvl)

	if timeFormat != "" {
		Logger = Logger.With().Timestamp().Logger()
	}
}
