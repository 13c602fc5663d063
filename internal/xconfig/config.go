// Package xconfig parses xenomorph's CLI options into a validated Config,
// grounded on the teacher's cmd/exec flag-parsing idiom (stdlib flag, short
// and long names registered against one variable, flag.Args for positionals),
// with an optional .env overlay of defaults borrowed from cmd/api/config.
package xconfig

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config is the fully parsed and validated set of options for `xenomorph
// pivot`, per spec.md §6's options table.
type Config struct {
	Image          string
	ExecCmd        string
	ExecArgs       []string
	KeepOldRootPath string
	KeepOldRoot    bool
	Force          bool
	TimeoutSeconds int
	NoInitCoord    bool
	SkipVerify     bool
	CacheDir       string
	WorkDir        string
	Verbose        bool
	DryRun         bool
}

var (
	ErrMissingImage   = errors.New("xconfig: missing image reference")
	ErrInvalidTimeout = errors.New("xconfig: timeout must be greater than zero")
)

// defaults mirrors spec.md §6's option defaults; loadDotenvDefaults may
// override these from a .env file before flag parsing, following
// cmd/api/config.Load's godotenv overlay.
type defaults struct {
	execCmd     string
	keepOldRoot string
	timeout     int
	cacheDir    string
	workDir     string
}

func defaultValues() defaults {
	d := defaults{
		execCmd:     "/bin/sh",
		keepOldRoot: "/mnt/oldroot",
		timeout:     30,
		cacheDir:    "/var/cache/xenomorph",
		workDir:     "/var/lib/xenomorph/rootfs",
	}
	_ = godotenv.Load()
	if v := os.Getenv("XENOMORPH_EXEC"); v != "" {
		d.execCmd = v
	}
	if v := os.Getenv("XENOMORPH_CACHE_DIR"); v != "" {
		d.cacheDir = v
	}
	if v := os.Getenv("XENOMORPH_WORK_DIR"); v != "" {
		d.workDir = v
	}
	return d
}

// Parse parses args (excluding the program name and the "pivot" verb)
// into a validated Config.
func Parse(args []string) (*Config, error) {
	d := defaultValues()
	fs := flag.NewFlagSet("pivot", flag.ContinueOnError)

	imageFlag := fs.String("image", "", "Image reference")
	execCmd := fs.String("exec", d.execCmd, "Post-pivot executable")
	keepOldRootPath := fs.String("keep-old-root", d.keepOldRoot, "Absolute mount point for old root")
	noKeepOldRoot := fs.Bool("no-keep-old-root", false, "Tear down old root after pivot instead of keeping it mounted")
	force := fs.Bool("force", false, "Skip the interactive confirmation prompt")
	fs.BoolVar(force, "f", false, "Skip the interactive confirmation prompt (short)")
	timeout := fs.Int("timeout", d.timeout, "Deadline for service shutdown and coordinator quiescence, in seconds")
	noInitCoord := fs.Bool("no-init-coord", false, "Skip the init coordinator entirely")
	skipVerify := fs.Bool("skip-verify", false, "Skip rootfs verification")
	cacheDir := fs.String("cache-dir", d.cacheDir, "OCI layer cache root")
	workDir := fs.String("work-dir", d.workDir, "Directory where the built rootfs is materialized")
	verbose := fs.Bool("verbose", false, "Log at debug level")
	fs.BoolVar(verbose, "v", false, "Log at debug level (short)")
	dryRun := fs.Bool("dry-run", false, "Print the planned steps and exit without side effects")
	fs.BoolVar(dryRun, "n", false, "Print the planned steps and exit without side effects (short)")

	positional, execArgs := splitOnDoubleDash(args)
	// flag stops at the first non-flag argument, so parsing resumes after
	// each positional to accept options on either side of the image.
	var rest []string
	for {
		if err := fs.Parse(positional); err != nil {
			return nil, fmt.Errorf("xconfig: %w", err)
		}
		if fs.NArg() == 0 {
			break
		}
		rest = append(rest, fs.Arg(0))
		positional = fs.Args()[1:]
	}

	image := *imageFlag
	if image == "" && len(rest) > 0 {
		image = rest[0]
	}
	if image == "" {
		return nil, ErrMissingImage
	}
	if *timeout <= 0 {
		return nil, ErrInvalidTimeout
	}

	cfg := &Config{
		Image:           image,
		ExecCmd:         *execCmd,
		ExecArgs:        execArgs,
		KeepOldRootPath: *keepOldRootPath,
		KeepOldRoot:     !*noKeepOldRoot,
		Force:           *force,
		TimeoutSeconds:  *timeout,
		NoInitCoord:     *noInitCoord,
		SkipVerify:      *skipVerify,
		CacheDir:        *cacheDir,
		WorkDir:         *workDir,
		Verbose:         *verbose,
		DryRun:          *dryRun,
	}
	return cfg, nil
}

// splitOnDoubleDash separates args into flag/positional arguments and
// everything following a literal "--", which is appended verbatim to the
// post-pivot exec argv per spec.md §6.
func splitOnDoubleDash(args []string) (before []string, after []string) {
	for i, a := range args {
		if a == "--" {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}

// OldRootMount strips the leading "/" from KeepOldRootPath to form the
// relative old_root_mount path used by internal/pivot.Execute.
func (c *Config) OldRootMount() string {
	path := c.KeepOldRootPath
	for len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	return path
}
