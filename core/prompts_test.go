package core

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPromptFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name         string
		content      string
		wantPositive string
		wantNegative string
		wantBase     string
		wantRefine   string
		wantErr      bool
	}{
		{
			name:         "both keys",
			content:      "positive: sharp\nnegative: soft\n",
			wantPositive: "sharp",
			wantNegative: "soft",
		},
		{
			name:         "missing negative keeps default",
			content:      "positive: sharp\n",
			wantPositive: "sharp",
			wantNegative: DefaultPrompts().Negative,
		},
		{
			name:         "t2i keys",
			content:      "base: studio portrait\nrefine: pores\n",
			wantPositive: DefaultPrompts().Positive,
			wantNegative: DefaultPrompts().Negative,
			wantBase:     "studio portrait",
			wantRefine:   "pores",
		},
		{
			name:    "malformed yaml",
			content: "positive: [unterminated\n",
			wantErr: true,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "p"+string(rune('a'+i))+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("write: %v", err)
			}

			got, err := LoadPromptFile(path)
			if tt.wantErr {
				if GetErrorCode(err) != ErrCodePromptFile {
					t.Errorf("LoadPromptFile() error = %v, want prompt file ConfigError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadPromptFile() error = %v", err)
			}
			if got.Positive != tt.wantPositive || got.Negative != tt.wantNegative {
				t.Errorf("LoadPromptFile() = %+v", got)
			}
			wantBase, wantRefine := tt.wantBase, tt.wantRefine
			if wantBase == "" {
				wantBase = DefaultPrompts().Base
			}
			if wantRefine == "" {
				wantRefine = DefaultPrompts().Refine
			}
			if got.Base != wantBase || got.Refine != wantRefine {
				t.Errorf("LoadPromptFile() base/refine = %q/%q, want %q/%q", got.Base, got.Refine, wantBase, wantRefine)
			}
		})
	}
}

func TestLoadPromptFile_Missing(t *testing.T) {
	_, err := LoadPromptFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if GetErrorCode(err) != ErrCodePromptFile {
		t.Errorf("LoadPromptFile() error = %v, want prompt file ConfigError", err)
	}
}
