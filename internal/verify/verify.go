// Package verify is the rootfs verifier (C4): checks that a directory
// looks like a bootable root filesystem.
package verify

import (
	"os"
	"path/filepath"
)

// essentialDirs are required; a missing one is an error and Valid=false.
var essentialDirs = []string{"bin", "lib", "dev", "proc", "sys"}

// recommendedDirs are advisory; a missing one is only a warning.
var recommendedDirs = []string{"etc", "tmp", "var", "usr", "sbin", "run"}

// essentialExecutables: at least one must exist, else an error.
var essentialExecutables = []string{"bin/sh", "bin/bash", "sbin/init", "usr/bin/sh"}

// Result is verify's report.
type Result struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// Verify inspects path against spec.md §4.4's essential/recommended tables.
func Verify(path string) (*Result, error) {
	res := &Result{Valid: true}

	for _, d := range essentialDirs {
		if !isDir(filepath.Join(path, d)) {
			res.Valid = false
			res.Errors = append(res.Errors, "missing essential directory: "+d)
		}
	}
	for _, d := range recommendedDirs {
		if !isDir(filepath.Join(path, d)) {
			res.Warnings = append(res.Warnings, "missing recommended directory: "+d)
		}
	}

	if !hasEssentialExecutable(path) {
		res.Valid = false
		res.Errors = append(res.Errors, "no essential executable found (bin/sh, bin/bash, sbin/init, usr/bin/sh)")
	}

	return res, nil
}

// IsValid is a quick predicate: all essential dirs exist AND at least one
// essential executable exists.
func IsValid(path string) bool {
	for _, d := range essentialDirs {
		if !isDir(filepath.Join(path, d)) {
			return false
		}
	}
	return hasEssentialExecutable(path)
}

func hasEssentialExecutable(root string) bool {
	for _, exe := range essentialExecutables {
		if isFile(filepath.Join(root, exe)) {
			return true
		}
	}
	return false
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
