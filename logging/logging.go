package logging

import (
	"time"

	"github.com/mononest/backend/config"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FlushTimeout bounds how long shutdown waits for buffered sentry events
const FlushTimeout = time.Second * 2

// New returns the structured logger for env, tagged with the build version
func New(env config.Environment, version string) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error
	if env == config.EnvProduction {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize logger")
	}
	return logger.With(zap.String("Version", version)), nil
}

// InitSentry configures the global sentry hub. An empty dsn leaves reporting disabled.
func InitSentry(env config.Environment, dsn string) error {
	if dsn == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: string(env),
		Debug:       env == config.EnvDevelopment,
	}); err != nil {
		return extErrors.Wrap(err, "Cannot initialize sentry")
	}
	return nil
}

// AttachSentry reports Error level entries to the current sentry hub.
// The logger is returned unchanged when no sentry client is configured.
func AttachSentry(logger *zap.Logger, component string) (*zap.Logger, error) {
	client := sentry.CurrentHub().Client()
	if client == nil {
		return logger, nil
	}
	cfg := zapsentry.Configuration{
		Level: zapcore.ErrorLevel,
		Tags: map[string]string{
			"component": component,
		},
	}
	core, err := zapsentry.NewCore(cfg, zapsentry.NewSentryClientFromClient(client))
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot attach sentry to logger")
	}
	return zapsentry.AttachCoreToLogger(core, logger), nil
}

// Flush drains pending sentry events
func Flush() {
	sentry.Flush(FlushTimeout)
}
