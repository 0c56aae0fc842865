package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewSugaredLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		verbose   bool
		level     string
		wantLevel zapcore.Level
		wantErr   bool
	}{
		{name: "production default", wantLevel: zapcore.InfoLevel},
		{name: "development default", verbose: true, wantLevel: zapcore.DebugLevel},
		{name: "production with debug", level: "debug", wantLevel: zapcore.DebugLevel},
		{name: "development with warn", verbose: true, level: "warn", wantLevel: zapcore.WarnLevel},
		{name: "invalid level", level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sugar, err := NewSugaredLogger(tt.verbose, tt.level)
			if tt.wantErr {
				require.ErrorContains(t, err, "invalid log level")
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantLevel, sugar.Level())
		})
	}
}
