package refiner

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go_superres/core"
	"go_superres/sdruntime"
)

func TestNewFromConfig(t *testing.T) {
	model := filepath.Join(t.TempDir(), "model.safetensors")
	if err := os.WriteFile(model, []byte("weights"), 0644); err != nil {
		t.Fatalf("writing model: %v", err)
	}

	tests := []struct {
		name     string
		cfg      core.Config
		wantCode string
		wantErr  error
	}{
		{name: "identity", cfg: core.Config{Backend: core.BackendIdentity}},
		{name: "local", cfg: core.Config{Backend: core.BackendLocal, ModelPath: model}},
		{name: "local missing model", cfg: core.Config{Backend: core.BackendLocal, ModelPath: "/nonexistent.safetensors"},
			wantErr: sdruntime.ErrModelNotFound},
		{name: "openai", cfg: core.Config{Backend: core.BackendOpenAI, OpenAIAPIKey: "sk-test"}},
		{name: "openai missing key", cfg: core.Config{Backend: core.BackendOpenAI}, wantCode: core.ErrCodeMissingAuth},
		{name: "unknown", cfg: core.Config{Backend: "comfyui"}, wantCode: core.ErrCodeUnknownBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewFromConfig(&tt.cfg)
			switch {
			case tt.wantCode != "":
				if core.GetErrorCode(err) != tt.wantCode {
					t.Errorf("NewFromConfig() error = %v, want code %s", err, tt.wantCode)
				}
				return
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("NewFromConfig() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewFromConfig() unexpected error: %v", err)
			}
			defer Close(r)
			if _, ok := r.(*Exclusive); !ok {
				t.Errorf("NewFromConfig() = %T, want *Exclusive", r)
			}
		})
	}
}
