package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lexicam/lexicam/config"
	"github.com/lexicam/lexicam/lexicon"
	"github.com/lexicam/lexicam/logging"
	"github.com/lexicam/lexicam/vocab"
)

// printf prints a message with a newline.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// warningf prints a yellow warning with a newline.
func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	color.New(color.FgYellow).Fprintf(w, "Warning: "+format+"\n", a...)
}

// loadConfig reads the file named by the global config flag, or returns the defaults.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String(configFlag)
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Read(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config %q", path)
	}
	return cfg, nil
}

// newLogger logs to the app's error writer so that command output stays clean, and to the
// configured log file if any.
func newLogger(c *cli.Context, cfg *config.Config) logging.Logger {
	logger := logging.NewBlankLogger("lexicam")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	if cfg.LogFile != "" {
		logger.AddAppender(logging.NewWriterAppender(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10,
			MaxBackups: 2,
			Compress:   true,
		}))
	}
	if c.Bool(debugFlag) {
		logger.SetLevel(logging.DEBUG)
	} else {
		logger.SetLevel(cfg.Level())
	}
	return logger
}

func loadResolver(cfg *config.Config) (*lexicon.Resolver, error) {
	if cfg.Lexicon == "" {
		return lexicon.Default()
	}
	//nolint:gosec
	f, err := os.Open(cfg.Lexicon)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open lexicon")
	}
	defer utils.UncheckedErrorFunc(f.Close)
	resolver, err := lexicon.LoadJSON(f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load lexicon %q", cfg.Lexicon)
	}
	return resolver, nil
}

func openStore(ctx context.Context, sc config.StoreConfig) (vocab.Store, error) {
	switch sc.Kind {
	case config.StoreMongoDB:
		store, err := vocab.NewMongoStore(ctx, sc.URI, sc.Database, sc.Collection)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "", config.StoreMemory:
		return vocab.NewMemoryStore(nil), nil
	default:
		return nil, errors.Errorf("unknown store kind %q", sc.Kind)
	}
}
