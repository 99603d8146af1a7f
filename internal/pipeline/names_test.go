package pipeline

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Meeting!! 2024.mp3", "My Meeting 2024.mp3"},
		{"  spaced name.wav  ", "spaced name.wav"},
		{"../../etc/passwd", "....etcpasswd"},
		{"report (final)_v2-b.m4a", "report (final)_v2-b.m4a"},
		{"Café Ünïcode.ogg", "Café Ünïcode.ogg"},
		{"!!!", "audio"},
		{"", "audio"},
		{"   ", "audio"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBaseName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Meeting 2024.mp3", "My Meeting 2024"},
		{"archive.tar.gz", "archive.tar"},
		{"noext", "noext"},
		{".hidden", ".hidden"},
		{"..double", "..double"},
		{"..double.wav", "..double"},
		{"trailing.", "trailing"},
		{"dir.v2/noext", "dir.v2/noext"},
		{"dir/clip.mp3", "dir/clip"},
	}
	for _, tt := range tests {
		if got := BaseName(tt.in); got != tt.want {
			t.Errorf("BaseName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOutputBase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Meeting!! 2024.mp3", "My Meeting 2024"},
		{"!!.mp3", "audio"},
		{"  .wav", "audio"},
		{"track .mp3", "track"},
		{"notes.txt", "notes"},
		{"", "audio"},
	}
	for _, tt := range tests {
		if got := OutputBase(tt.in); got != tt.want {
			t.Errorf("OutputBase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtension(t *testing.T) {
	if got := extension("clip.MP3"); got != ".MP3" {
		t.Errorf("extension = %q", got)
	}
	if got := extension("audio"); got != "" {
		t.Errorf("extension = %q", got)
	}
}

func TestWorkspace(t *testing.T) {
	root := t.TempDir()
	ws, err := NewWorkspace(root, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	closed := 0
	ws.onClose = func() { closed++ }

	if err := os.MkdirAll(ws.Path("out", "deep"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ws.Path("out", "deep", "f.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ws.Close()
	ws.Close()
	if _, err := os.Stat(ws.Dir()); !os.IsNotExist(err) {
		t.Errorf("workspace still exists: %v", err)
	}
	if closed != 1 {
		t.Errorf("onClose ran %d times, want 1", closed)
	}
}
