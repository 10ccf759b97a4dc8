package textquiz

import "go.uber.org/zap"

// NewLogger builds the process logger: JSON production logging for the
// production environment, human readable development logging otherwise.
// verbose lowers the level to debug.
func NewLogger(env string, verbose bool) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}
