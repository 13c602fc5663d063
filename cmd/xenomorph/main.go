// Command xenomorph pivots the running process into a freshly materialized
// OCI or tarball rootfs, tearing down the old root's services along the
// way.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ananthb/xenomorph/internal/initcoord"
	"github.com/ananthb/xenomorph/internal/metrics"
	"github.com/ananthb/xenomorph/internal/pivot"
	"github.com/ananthb/xenomorph/internal/procs"
	"github.com/ananthb/xenomorph/internal/rootfs"
	"github.com/ananthb/xenomorph/internal/verify"
	"github.com/ananthb/xenomorph/internal/xconfig"
	"github.com/ananthb/xenomorph/internal/xlog"
)

var log = xlog.Scope("main")

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 1
	}

	switch args[0] {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "version", "--version", "-V":
		fmt.Println("xenomorph " + version)
		return 0
	case "pivot":
		return runPivot(args[1:])
	default:
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: xenomorph pivot <image> [options]
       xenomorph help | --help | -h
       xenomorph version | --version | -V

options:
  --image <ref>          image reference (required; or positional)
  --exec <cmd>            post-pivot executable (default /bin/sh)
  --keep-old-root <path>  absolute mount point for old root (default /mnt/oldroot)
  --no-keep-old-root      tear down old root after pivot
  -f, --force             skip the interactive confirmation prompt
  --timeout <s>           shutdown/quiescence deadline in seconds (default 30)
  --no-init-coord         skip the init coordinator entirely
  --skip-verify           skip rootfs verification
  --cache-dir <path>      OCI layer cache root (default /var/cache/xenomorph)
  --work-dir <path>       rootfs materialization directory (default /var/lib/xenomorph/rootfs)
  -v, --verbose           log at debug level
  -n, --dry-run           print the planned steps and exit
  --                      everything after is appended to exec argv`)
}

func runPivot(args []string) int {
	cfg, err := xconfig.Parse(args)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		return 1
	}

	xlog.SetVerbose(cfg.Verbose)

	if cfg.DryRun {
		printPlan(cfg)
		return 0
	}

	if os.Geteuid() != 0 {
		log.Error("xenomorph must run as root with CAP_SYS_ADMIN")
		return 1
	}

	if !cfg.Force && !confirm() {
		log.Info("aborted by user")
		return 1
	}

	ctx := context.Background()

	rec, err := metrics.New()
	if err != nil {
		log.Warn("metrics initialization failed, continuing without instrumentation", "error", err)
		rec = nil
	}
	defer rec.Shutdown(context.Background())

	if err := pipeline(ctx, cfg, rec); err != nil {
		log.Error("pivot failed", "error", err)
		return 1
	}
	return 0
}

// pipeline runs build -> verify -> coordinate -> terminate -> prepare ->
// execute, per spec.md §2's control flow.
func pipeline(ctx context.Context, cfg *xconfig.Config, rec *metrics.Recorder) error {
	rec.Stage(ctx, "build")
	cache, err := rootfs.NewCacheStore(cfg.CacheDir)
	if err != nil {
		log.Warn("cache store unavailable, continuing uncached", "error", err)
		cache = nil
	}
	buildResult, err := rootfs.Build(ctx, cfg.Image, cfg.WorkDir, rootfs.BuildOptions{
		ApplyWhiteouts: true,
		VerifyDigests:  true,
		Cache:          cache,
	})
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	rec.LayerBytes(ctx, buildResult.TotalSize)
	log.Info("built rootfs", "path", buildResult.RootfsPath, "layers", buildResult.LayerCount, "size", buildResult.TotalSize)

	rec.Stage(ctx, "verify")
	if !cfg.SkipVerify {
		res, err := verify.Verify(buildResult.RootfsPath)
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		if !res.Valid {
			return fmt.Errorf("verify: rootfs invalid: %v", res.Errors)
		}
		for _, w := range res.Warnings {
			log.Warn("rootfs warning", "message", w)
		}
	}

	rec.Stage(ctx, "coordinate")
	if !cfg.NoInitCoord && !initcoord.SkipInContainer() {
		det, err := initcoord.Detect()
		if err != nil {
			log.Warn("init detection failed, continuing", "error", err)
		} else {
			timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
			coordCtx, cancel := context.WithTimeout(ctx, timeout)
			if err := initcoord.Coordinate(coordCtx, det, initcoord.TargetMultiUser); err != nil {
				log.Warn("init coordination failed, continuing", "error", err)
			}
			if err := initcoord.WaitQuiescence(coordCtx, det, timeout); err != nil {
				log.Warn("quiescence wait timed out, continuing", "error", err)
			}
			cancel()
		}
	}

	rec.Stage(ctx, "terminate")
	termResult, err := procs.Terminate(procs.DefaultTerminateOptions())
	if err != nil {
		return fmt.Errorf("terminate: %w", err)
	}
	rec.Termination(ctx, termResult.TerminatedCount, termResult.KilledCount, len(termResult.StubbornPIDs))
	log.Info("terminated processes", "terminated", termResult.TerminatedCount, "killed", termResult.KilledCount, "stubborn", termResult.StubbornPIDs)

	rec.Stage(ctx, "prepare")
	if _, err := pivot.Prepare(pivot.PrepareOptions{
		NewRoot:         buildResult.RootfsPath,
		SkipVerify:      true,
		CreateNamespace: true,
	}); err != nil {
		return fmt.Errorf("prepare: %w", err)
	}

	rec.Stage(ctx, "execute")
	return pivot.Execute(pivot.ExecuteOptions{
		NewRoot:      buildResult.RootfsPath,
		OldRootMount: cfg.OldRootMount(),
		ExecCmd:      cfg.ExecCmd,
		ExecArgs:     cfg.ExecArgs,
		KeepOldRoot:  cfg.KeepOldRoot,
	})
}

// printPlan emits spec.md §8 S6's nine numbered steps without performing
// any of them.
func printPlan(cfg *xconfig.Config) {
	fmt.Printf("plan for: xenomorph pivot %s\n", cfg.Image)
	steps := []string{
		"parse config",
		"validate config",
		fmt.Sprintf("confirm (force=%v)", cfg.Force),
		fmt.Sprintf("build rootfs into %s", cfg.WorkDir),
		fmt.Sprintf("verify rootfs (skip=%v)", cfg.SkipVerify),
		fmt.Sprintf("coordinate init system (skip=%v)", cfg.NoInitCoord),
		"terminate non-essential processes",
		"prepare new root (namespace, submounts)",
		fmt.Sprintf("execute pivot and exec %s", cfg.ExecCmd),
	}
	for i, s := range steps {
		fmt.Printf("  %d. %s\n", i+1, s)
	}
}

func confirm() bool {
	fmt.Print("Continue? [y/N] ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	switch line[:min(1, len(line))] {
	case "y", "Y":
		return true
	default:
		return false
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
