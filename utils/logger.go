package utils

import (
	"go.uber.org/zap"
)

// Log is the process-wide logger. Replace via InitLogger before serving.
var Log *zap.SugaredLogger

func init() {
	Log = zap.Must(zap.NewDevelopment()).Sugar()
}

// InitLogger installs the production logger and returns the underlying core
// so main can defer a Sync.
func InitLogger() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	Log = l.Sugar()
	return l
}
