package errors

import (
	"strings"
	"testing"
)

type renderRequest struct {
	Format string  `validate:"required,oneof=svg json png pdf dot"`
	Width  int     `validate:"gte=0"`
	Scale  float64 `validate:"omitempty,gte=0.5,lte=4"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name string
		req  renderRequest
		want []string
	}{
		{"valid", renderRequest{Format: "svg", Width: 1200}, nil},
		{"missing format", renderRequest{}, []string{"Format: is required"}},
		{"bad format", renderRequest{Format: "gif"}, []string{"Format: must be one of [svg json png pdf dot]"}},
		{"two failures", renderRequest{Format: "svg", Width: -1, Scale: 9}, []string{
			"Width: must be at least 0", "Scale: must be at most 4",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(ErrCodeInvalidConfig, tt.req)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !Is(err, ErrCodeInvalidConfig) {
				t.Fatalf("code = %v, want %v", GetCode(err), ErrCodeInvalidConfig)
			}
			for _, w := range tt.want {
				if !strings.Contains(UserMessage(err), w) {
					t.Errorf("message %q missing %q", UserMessage(err), w)
				}
			}
		})
	}
}

func TestValidateSessionID(t *testing.T) {
	tests := []struct {
		id   string
		code Code
	}{
		{"0b8f7d1e-6a3c-4c1e-9a53-2a0f6f9d3b11", ""},
		{"", ErrCodeInvalidInput},
		{"../../etc/passwd", ErrCodeSessionNotFound},
	}
	for _, tt := range tests {
		err := ValidateSessionID(tt.id)
		if got := GetCode(err); got != tt.code {
			t.Errorf("ValidateSessionID(%q) code = %q, want %q", tt.id, got, tt.code)
		}
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "topics.json", false},
		{"valid nested", "exports/2026/topics.svg", false},
		{"valid filename only", "README.md", false},
		{"valid with dots", "k2-k10.v3/diagram.pdf", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 600)), true},
		{"absolute path", "/etc/passwd", true},
		{"path traversal", "../../../etc/passwd", true},
		{"path traversal middle", "foo/../bar", true},
		{"null byte", "foo\x00bar", true},
		{"backslash", "foo\\bar", true},
		{"control char", "foo\x01bar", true},
		{"newline", "foo\nbar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPath) {
				t.Errorf("ValidatePath(%q) returned wrong error code: %v", tt.input, err)
			}
		})
	}
}

func TestErrorCodesAreUnique(t *testing.T) {
	codes := []Code{
		ErrCodeInvalidInput,
		ErrCodeInvalidFormat,
		ErrCodeInvalidConfig,
		ErrCodeInvalidSelection,
		ErrCodeInvalidEvent,
		ErrCodeInvalidPath,
		ErrCodeNotFound,
		ErrCodeFileNotFound,
		ErrCodeSessionNotFound,
		ErrCodeStorage,
		ErrCodeTimeout,
		ErrCodeInternal,
		ErrCodeUnsupported,
	}
	seen := make(map[Code]bool)
	for _, c := range codes {
		if seen[c] {
			t.Errorf("duplicate error code: %s", c)
		}
		seen[c] = true
	}
}
