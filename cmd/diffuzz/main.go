// Command diffuzz differentially fuzzes a JIT-compiled managed-language
// runtime (spec.md §1): it generates programs, compiles each under a debug
// and a release regime against an external host process, runs both compiled
// artifacts, and reports any divergence. Given --reduce, it shrinks a found
// divergence to a smaller reproducer instead.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/diffuzz/diffuzz/internal/compiler"
	"github.com/diffuzz/diffuzz/internal/config"
	"github.com/diffuzz/diffuzz/internal/dispatch"
	"github.com/diffuzz/diffuzz/internal/execclient"
	"github.com/diffuzz/diffuzz/internal/eventlog"
	"github.com/diffuzz/diffuzz/internal/pipeline"
	"github.com/diffuzz/diffuzz/internal/reduce"
	"github.com/diffuzz/diffuzz/internal/synth"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "diffuzz:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Parse(args)
	if err != nil {
		return err
	}
	if cfg.Host == "" {
		return fmt.Errorf("--host is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, closeLog, err := openEventLog(cfg.OutputEventsTo)
	if err != nil {
		return err
	}
	defer closeLog()

	exec, err := execclient.Spawn(ctx, cfg.Host)
	if err != nil {
		return fmt.Errorf("spawn host: %w", err)
	}
	defer exec.Shutdown()

	debugC := &compiler.ProcessCompiler{Client: exec, Regime: "debug"}
	relC := &compiler.ProcessCompiler{Client: exec, Regime: "release"}

	synthCfg := synth.DefaultConfig()
	synthCfg.ChecksumEnabled = cfg.ChecksumEnabled

	p := &pipeline.Pipeline{
		SynthConfig:   synthCfg,
		PrimaryClass:  "Program",
		DebugCompiler: debugC,
		RelCompiler:   relC,
		Exec:          exec,
		Log:           logger,
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	if cfg.RemoveFixedDir != "" {
		if err := pruneFixed(ctx, cfg.RemoveFixedDir, debugC, relC, exec); err != nil {
			return err
		}
	}

	if cfg.Reduce {
		return runReduce(ctx, cfg, p, debugC, relC, exec, seed)
	}
	return runGenerate(ctx, cfg, p, seed)
}

// runGenerate drives the parallel dispatcher (spec.md §5), generating and
// checking programs until the plan's bound is reached.
func runGenerate(ctx context.Context, cfg config.Config, p *pipeline.Pipeline, masterSeed uint64) error {
	plan := dispatch.Plan{
		NumPrograms:  cfg.NumPrograms,
		SecondsToRun: cfg.SecondsToRun,
		Parallelism:  cfg.Parallelism,
	}

	var firstFound *pipeline.Outcome
	err := dispatch.Run(ctx, masterSeed, plan, func(ctx context.Context, seed uint64) error {
		out, err := p.RunOnce(ctx, seed)
		if err != nil {
			return err
		}
		if out.Interesting() && firstFound == nil {
			firstFound = &out
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}

	if firstFound != nil && cfg.OutputSource != "" {
		return writeSource(cfg.OutputSource, firstFound.Source)
	}
	return nil
}

// runReduce generates exactly one program from cfg.Seed and, if it's
// interesting, shrinks it (spec.md §4.H).
func runReduce(ctx context.Context, cfg config.Config, p *pipeline.Pipeline, debugC, relC compiler.Compiler, exec *execclient.Client, seed uint64) error {
	out, err := p.RunOnce(ctx, seed)
	if err != nil {
		return err
	}
	if !out.Interesting() {
		return fmt.Errorf("seed %d does not reproduce a divergence", seed)
	}

	reduceExec := exec
	if !cfg.ReduceUseChildProcesses {
		reduceExec = nil
	}

	rd := reduce.New(debugC, relC, reduceExec, reduce.DefaultConfig())
	final, report, err := rd.Reduce(ctx, out.Program)
	if err != nil {
		return fmt.Errorf("reduce: %w", err)
	}

	if p.Log != nil {
		_ = p.Log.Append(eventlog.KindReduced, seed, map[string]any{
			"originalBytes": report.OriginalSizeBytes,
			"reducedBytes":  report.ReducedSizeBytes,
		})
	}

	if cfg.OutputSource == "" {
		return nil
	}
	src, err := reduce.PrintWithHeader(final, report)
	if err != nil {
		return fmt.Errorf("print reduced program: %w", err)
	}
	return writeSource(cfg.OutputSource, src)
}

// pruneFixed re-checks every previously-reduced example under dir and
// removes the ones that no longer reproduce, the way a fixed bug's
// regression file stops being interesting once the underlying defect is
// gone (spec.md §6 --remove-fixed).
func pruneFixed(ctx context.Context, dir string, debugC, relC compiler.Compiler, exec *execclient.Client) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("remove-fixed: read %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("remove-fixed: read %s: %w", path, err)
		}

		dbgBytes, dbgErr := debugC.Compile(src, compiler.Options{Optimize: false})
		relBytes, relErr := relC.Compile(src, compiler.Options{Optimize: true})
		if dbgErr != nil || relErr != nil {
			continue // still a compiler-level divergence, keep the file
		}
		if exec == nil {
			continue
		}
		outcome, err := exec.RunPair(ctx, execclient.PairArgs{Debug: dbgBytes, Release: relBytes})
		if err != nil {
			return fmt.Errorf("remove-fixed: run %s: %w", path, err)
		}
		if outcome.Crash != nil || outcome.Timeout {
			continue
		}
		if outcome.Pair != nil && (outcome.Pair.Mismatched() || outcome.Pair.DebugResult.ExceptionType != outcome.Pair.ReleaseResult.ExceptionType) {
			continue
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove-fixed: remove %s: %w", path, err)
		}
	}
	return nil
}

func openEventLog(path string) (*eventlog.Logger, func(), error) {
	if path == "" {
		return eventlog.New(nil), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open --output-events-to: %w", err)
	}
	return eventlog.New(f), func() { _ = f.Close() }, nil
}

func writeSource(path string, src []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(src)
		return err
	}
	return os.WriteFile(path, src, 0o644)
}
