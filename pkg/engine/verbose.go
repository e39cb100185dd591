package engine

import (
	"os"

	"github.com/sirupsen/logrus"
)

// stdoutHook mirrors log entries to stdout for the duration it is
// attached. It backs Config.Verbose (spec §6): a deployment-scoped mirror
// rather than a global log.SetLevel(log.DebugLevel) toggle; the hook is
// removed when the verbose call returns. It is attached to the underlying
// *logrus.Logger, so while it is attached, entries that any other caller
// logs through that same Logger are mirrored as well.
type stdoutHook struct {
	formatter logrus.Formatter
}

func (stdoutHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h stdoutHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(line)
	return err
}

// withVerbose attaches a stdout mirror hook to log, if log is a
// *logrus.Logger and verbose is true, for the duration of the returned
// detach function's caller scope. Entry loggers (derived via WithField)
// share their parent Logger's hooks, so this also covers per-deployment
// field loggers derived from the same base.
func withVerbose(log logrus.FieldLogger, verbose bool) (detach func()) {
	if !verbose {
		return func() {}
	}
	base, ok := underlyingLogger(log)
	if !ok {
		return func() {}
	}
	hook := stdoutHook{formatter: &logrus.TextFormatter{DisableTimestamp: true}}
	before := base.ReplaceHooks(cloneHooks(base.Hooks))
	base.AddHook(hook)
	return func() {
		base.ReplaceHooks(before)
	}
}

func underlyingLogger(log logrus.FieldLogger) (*logrus.Logger, bool) {
	switch v := log.(type) {
	case *logrus.Logger:
		return v, true
	case *logrus.Entry:
		return v.Logger, true
	default:
		return nil, false
	}
}

func cloneHooks(in logrus.LevelHooks) logrus.LevelHooks {
	out := logrus.LevelHooks{}
	for level, hooks := range in {
		out[level] = append([]logrus.Hook{}, hooks...)
	}
	return out
}
