package kit

import "go.uber.org/zap"

// NewLogger builds a production JSON logger tagged with the service name.
// Unknown levels fall back to info.
func NewLogger(service, level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.InitialFields = map[string]any{"service": service}

	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}

	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}
