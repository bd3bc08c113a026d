package logsvc

import (
	"fmt"
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/user"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (lvl Level) String() string {
	if lvl < LevelDebug || lvl > LevelFatal {
		return fmt.Sprintf("Level(%d)", int(lvl))
	}
	return levelNames[lvl]
}

// RollbarLogger prints to std and reports to Rollbar when enabled.
// Messages below the minimum level are dropped.
type RollbarLogger struct {
	std *log.Logger
	min Level
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(!conf.Debug && !conf.TestMode && conf.RollbarToken != "")

	l := &RollbarLogger{std: std, min: LevelInfo}
	if conf.Debug {
		l.min = LevelDebug
	}
	return l
}

func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

func (l *RollbarLogger) SetLevel(lvl Level) {
	l.min = lvl
}

// Close waits for queued Rollbar items to be sent.
func (l *RollbarLogger) Close() {
	rollbar.Close()
}

// expected fmt: msg | error, map[string]interface{}, user.User, session.Session
func (l *RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var usrSet bool
	setPerson := func(usr user.User) {
		if !usrSet && !usr.IsZero() { // only set one User
			rollbar.SetPerson(usr.ID, usr.DisplayName(), usr.Email)
			usrSet = true
		}
	}

	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		switch v := arg.(type) {
		case user.User:
			setPerson(v)
		case session.Session:
			// never ship tokens
			setPerson(v.User)
		default:
			newArgs = append(newArgs, arg)
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

func (l *RollbarLogger) print(lvl Level, msg string, args []interface{}) {
	l.std.Printf("%s: %s", lvl, msg)
	for _, arg := range args {
		switch v := arg.(type) {
		case user.User:
			l.std.Printf("\tuser: %s <%s> (%s)", v.ID, v.Email, v.Role)
		case session.Session:
			l.std.Printf("\tsession: user %s, persistent: %t", v.User.ID, v.Persistent)
		default:
			l.std.Printf("\t%+v", arg)
		}
	}
}

func (l *RollbarLogger) log(lvl Level, msg string, args []interface{}) bool {
	if lvl < l.min {
		return false
	}
	l.print(lvl, msg, args)
	return true
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	if l.log(LevelDebug, msg, args) {
		rollbar.Debug(l.prepare(msg, args)...)
	}
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	if l.log(LevelInfo, msg, args) {
		rollbar.Info(l.prepare(msg, args)...)
	}
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	if l.log(LevelWarn, msg, args) {
		rollbar.Warning(l.prepare(msg, args)...)
	}
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	if l.log(LevelError, msg, args) {
		rollbar.Error(l.prepare(msg, args)...)
	}
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(LevelFatal, msg, args)
	rollbar.Critical(l.prepare(msg, args)...)
	rollbar.Close()
	l.std.Fatal(msg)
}
