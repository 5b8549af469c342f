package listen

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestCreateLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   LogLevel
		enabled zapcore.Level
		silent  bool
	}{
		{"None", LogLevelNone, zapcore.ErrorLevel, true},
		{"Error", LogLevelError, zapcore.ErrorLevel, false},
		{"Warn", LogLevelWarn, zapcore.WarnLevel, false},
		{"Info", LogLevelInfo, zapcore.InfoLevel, false},
		{"Debug", LogLevelDebug, zapcore.DebugLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := createLogger(tt.level)
			if logger == nil {
				t.Fatal("Expected logger to be created")
			}
			core := logger.Core()
			if tt.silent {
				if core.Enabled(zapcore.FatalLevel) {
					t.Errorf("Expected no level to be enabled")
				}
				return
			}
			if !core.Enabled(tt.enabled) {
				t.Errorf("Expected %s to be enabled", tt.enabled)
			}
			if tt.enabled > zapcore.DebugLevel && core.Enabled(tt.enabled-1) {
				t.Errorf("Expected %s to be disabled", tt.enabled-1)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{in: "", want: LogLevelNone},
		{in: "none", want: LogLevelNone},
		{in: "ERROR", want: LogLevelError},
		{in: "warning", want: LogLevelWarn},
		{in: " info ", want: LogLevelInfo},
		{in: "debug", want: LogLevelDebug},
		{in: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
