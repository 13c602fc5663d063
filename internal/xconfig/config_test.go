package xconfig

import "testing"

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]string{"alpine"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Image != "alpine" {
		t.Errorf("Image = %q", cfg.Image)
	}
	if cfg.ExecCmd != "/bin/sh" {
		t.Errorf("ExecCmd = %q", cfg.ExecCmd)
	}
	if cfg.KeepOldRootPath != "/mnt/oldroot" {
		t.Errorf("KeepOldRootPath = %q", cfg.KeepOldRootPath)
	}
	if !cfg.KeepOldRoot {
		t.Error("KeepOldRoot should default to true")
	}
	if cfg.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d", cfg.TimeoutSeconds)
	}
}

func TestParseMissingImage(t *testing.T) {
	_, err := Parse([]string{"--verbose"})
	if err != ErrMissingImage {
		t.Fatalf("expected ErrMissingImage, got %v", err)
	}
}

func TestParseZeroTimeoutInvalid(t *testing.T) {
	_, err := Parse([]string{"alpine", "--timeout", "0"})
	if err != ErrInvalidTimeout {
		t.Fatalf("expected ErrInvalidTimeout, got %v", err)
	}
}

func TestParseDoubleDashExecArgs(t *testing.T) {
	cfg, err := Parse([]string{"alpine", "--", "echo", "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.ExecArgs) != 2 || cfg.ExecArgs[0] != "echo" || cfg.ExecArgs[1] != "hi" {
		t.Fatalf("unexpected ExecArgs: %v", cfg.ExecArgs)
	}
}

func TestOldRootMountStripsLeadingSlash(t *testing.T) {
	cfg := &Config{KeepOldRootPath: "/mnt/oldroot"}
	if got := cfg.OldRootMount(); got != "mnt/oldroot" {
		t.Errorf("OldRootMount() = %q", got)
	}
}

func TestParseNoKeepOldRoot(t *testing.T) {
	cfg, err := Parse([]string{"alpine", "--no-keep-old-root"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.KeepOldRoot {
		t.Error("KeepOldRoot should be false when --no-keep-old-root is set")
	}
}
