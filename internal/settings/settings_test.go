package settings

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestOpen_MissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "applet", "settings.yaml")

	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if loc := s.Location(); loc.Latitude != 0 || loc.Longitude != 0 {
		t.Errorf("Location() = %+v, want zero", loc)
	}
	if s.UseFahrenheit() {
		t.Error("UseFahrenheit() = true, want false")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Open() created %s before any write", path)
	}
}

func TestOpen_ReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	writeFile(t, path, "latitude: -33.86\nlongitude: 151.21\nuse_fahrenheit: true\n")

	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	loc := s.Location()
	if loc.Latitude != -33.86 || loc.Longitude != 151.21 {
		t.Errorf("Location() = %+v, want {-33.86 151.21}", loc)
	}
	if !s.UseFahrenheit() {
		t.Error("UseFahrenheit() = false, want true")
	}
}

func TestOpen_MissingAndUnknownFieldsDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	writeFile(t, path, "longitude: 10.5\ntheme: dark\nversion: 3\n")

	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	loc := s.Location()
	if loc.Latitude != 0 || loc.Longitude != 10.5 {
		t.Errorf("Location() = %+v, want {0 10.5}", loc)
	}
	if s.UseFahrenheit() {
		t.Error("UseFahrenheit() = true, want default false")
	}
}

func TestOpen_CorruptFileLogsAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	writeFile(t, path, "latitude: [not, a, number\n")

	core, logs := observer.New(zapcore.WarnLevel)
	s, err := Open(path, zap.New(core))
	if err != nil {
		t.Fatalf("Open() error = %v, want defaults", err)
	}
	if loc := s.Location(); loc.Latitude != 0 || loc.Longitude != 0 {
		t.Errorf("Location() = %+v, want zero", loc)
	}
	if logs.FilterMessage("settings file unreadable, using defaults").Len() != 1 {
		t.Errorf("expected one warning about unreadable settings, got %v", logs.All())
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open("", nil); err == nil {
		t.Fatal("Open(\"\") error = nil, want error")
	}
}

func TestFileStore_SettersWriteThrough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := s.SetLatitude(-27.47); err != nil {
		t.Fatalf("SetLatitude() error = %v", err)
	}
	if err := s.SetLongitude(153.03); err != nil {
		t.Fatalf("SetLongitude() error = %v", err)
	}
	if err := s.SetUseFahrenheit(true); err != nil {
		t.Fatalf("SetUseFahrenheit() error = %v", err)
	}

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	loc := reopened.Location()
	if loc.Latitude != -27.47 || loc.Longitude != 153.03 {
		t.Errorf("reopened Location() = %+v, want {-27.47 153.03}", loc)
	}
	if !reopened.UseFahrenheit() {
		t.Error("reopened UseFahrenheit() = false, want true")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(raw), "use_fahrenheit: true") {
		t.Errorf("settings file = %q, want use_fahrenheit key", raw)
	}
}

func TestFileStore_SetterLeavesOtherFieldsAlone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	writeFile(t, path, "latitude: 1.5\nlongitude: 2.5\nuse_fahrenheit: true\n")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := s.SetLongitude(9); err != nil {
		t.Fatalf("SetLongitude() error = %v", err)
	}
	reopened, _ := Open(path, nil)
	if got := reopened.Location(); got.Latitude != 1.5 || got.Longitude != 9 {
		t.Errorf("Location() = %+v, want {1.5 9}", got)
	}
	if !reopened.UseFahrenheit() {
		t.Error("UseFahrenheit() changed by SetLongitude")
	}
}

func TestFileStore_RejectsNonFinite(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "settings.yaml"), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.SetLatitude(math.NaN()); !errors.Is(err, ErrNotFinite) {
		t.Errorf("SetLatitude(NaN) error = %v, want ErrNotFinite", err)
	}
	if err := s.SetLongitude(math.Inf(1)); !errors.Is(err, ErrNotFinite) {
		t.Errorf("SetLongitude(+Inf) error = %v, want ErrNotFinite", err)
	}
	if loc := s.Location(); loc.Latitude != 0 || loc.Longitude != 0 {
		t.Errorf("Location() = %+v after rejected writes, want zero", loc)
	}
}

func TestFileStore_WriteFailureKeepsMemoryValue(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	s, err := Open(filepath.Join(sub, "settings.yaml"), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	// A regular file where the settings directory should be makes every write fail.
	writeFile(t, sub, "")

	if err := s.SetLatitude(12); err == nil {
		t.Fatal("SetLatitude() error = nil, want write failure")
	}
	if got := s.Location().Latitude; got != 12 {
		t.Errorf("Location().Latitude = %v after failed write, want 12", got)
	}
}
