package verify

import (
	"os"
	"path/filepath"
	"testing"
)

func makeRootfs(t *testing.T, dirs []string, executables []string) string {
	t.Helper()
	root := t.TempDir()
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	for _, e := range executables {
		full := filepath.Join(root, e)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("#!/bin/sh\n"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestVerifyCompleteRootfs(t *testing.T) {
	root := makeRootfs(t,
		[]string{"bin", "lib", "dev", "proc", "sys", "etc", "tmp", "var", "usr", "sbin", "run"},
		[]string{"bin/sh"})

	res, err := Verify(root)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Valid {
		t.Fatalf("expected valid, errors=%v", res.Errors)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", res.Warnings)
	}
	if !IsValid(root) {
		t.Fatal("IsValid should agree")
	}
}

func TestVerifyMissingEssentialDirIsError(t *testing.T) {
	root := makeRootfs(t, []string{"bin", "lib", "dev", "proc"}, []string{"bin/sh"})

	res, err := Verify(root)
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid {
		t.Fatal("expected invalid due to missing sys directory")
	}
	if IsValid(root) {
		t.Fatal("IsValid should also report false")
	}
}

func TestVerifyMissingRecommendedDirIsWarningOnly(t *testing.T) {
	root := makeRootfs(t, []string{"bin", "lib", "dev", "proc", "sys"}, []string{"bin/sh"})

	res, err := Verify(root)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Valid {
		t.Fatalf("missing only recommended dirs should still be valid, errors=%v", res.Errors)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected warnings for missing recommended directories")
	}
}

func TestVerifyNoEssentialExecutableIsError(t *testing.T) {
	root := makeRootfs(t, []string{"bin", "lib", "dev", "proc", "sys"}, nil)

	res, err := Verify(root)
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid {
		t.Fatal("expected invalid due to missing essential executable")
	}
}
