package log

import (
	"go.uber.org/zap"
)

var Logger *zap.Logger

func InitProductionLogger() {
	Logger, _ = zap.NewProduction()
}

func InitDevelopmentLogger() {
	Logger, _ = zap.NewDevelopment()
}

// Named returns a named sub-logger for a component. Initializes the
// production logger if none was set up yet.
func Named(name string) *zap.Logger {
	if Logger == nil {
		InitProductionLogger()
	}
	return Logger.Named(name)
}
