package separator_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"lala/internal/config"
	"lala/internal/services"
	"lala/internal/services/separator"
)

// stemWriter mimics a separation tool that nests output under a model dir.
type stemWriter struct {
	names []string
}

func (s stemWriter) Run(_ context.Context, _ string, args []string, onLine func(string)) error {
	var outDir string
	for i, arg := range args {
		if arg == "--output-dir" && i+1 < len(args) {
			outDir = args[i+1]
		}
	}
	nested := filepath.Join(outDir, "htdemucs", "original")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		return err
	}
	for i, name := range s.names {
		onLine(fmt.Sprintf("PROGRESS:%d/%d", i+1, len(s.names)))
		if err := os.WriteFile(filepath.Join(nested, name), []byte("pcm"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func TestSeparateCollectsStems(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "separation")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(outDir, "stale.wav")
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	client, err := separator.New(config.Tool{
		Command: "lala-separate",
		Args:    []string{"--output-dir", "{output_dir}", "{input}"},
	}, separator.WithExecutor(stemWriter{names: []string{"Vocals.wav", "drums.wav", "bass.wav", "other.wav", "notes.txt"}}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var progressCalls int
	stems, err := client.Separate(context.Background(), filepath.Join(dir, "original.flac"), outDir, func(float64, string) {
		progressCalls++
	})
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}
	for _, name := range []string{"vocals", "drums", "bass", "other"} {
		if _, ok := stems[name]; !ok {
			t.Fatalf("missing stem %q in %v", name, stems)
		}
	}
	if _, ok := stems["stale"]; ok {
		t.Fatal("stale output from a previous run should be cleared")
	}
	if _, ok := stems["notes"]; ok {
		t.Fatal("non-audio files should be ignored")
	}
	if progressCalls == 0 {
		t.Fatal("expected progress callbacks")
	}
}

func TestSeparateWithoutOutputFails(t *testing.T) {
	client, err := separator.New(config.Tool{Command: "lala-separate", Args: []string{"--output-dir", "{output_dir}"}},
		separator.WithExecutor(stemWriter{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = client.Separate(context.Background(), "/in.wav", filepath.Join(t.TempDir(), "out"), nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}
