// Package config resolves the CLI surface (spec.md §6) into a single Config
// value, the way the teacher threads an Options struct through New(Options)
// with environment-variable fallback for its debug toggles (yaegi's
// YAEGI_AST_DOT, YAEGI_CFG_DOT). diffuzz follows the same shape: flags first,
// falling back to DIFFUZZ_* environment variables for the handful of
// development-only toggles that don't warrant their own flag.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

// Config is the fully-resolved set of options driving one invocation of the
// diffuzz CLI (spec.md §6).
type Config struct {
	Host string // path to the child executor host binary (spec.md §4.G)
	Seed uint64

	NumPrograms   int // 0 means unset; mutually exclusive with SecondsToRun
	SecondsToRun  int // 0 means unset

	Parallelism int // number of parallel workers; -1 means GOMAXPROCS

	Reduce                  bool
	ReduceUseChildProcesses bool

	OutputSource   string // path (or "-" for stdout) to write a found/reduced program to
	OutputEventsTo string // path to append JSON-lines events to (spec.md "append-only event log")
	ChecksumEnabled bool

	RemoveFixedDir string // directory of previously-reduced examples to re-check and prune once fixed

	// DebugDot and KeepTemp are development-only toggles with no flag of
	// their own, set via DIFFUZZ_DEBUG_DOT / DIFFUZZ_KEEP_TEMP.
	DebugDot bool
	KeepTemp bool
}

// checksumValue implements flag.Value for --checksum[+|-] (spec.md §6): bare
// --checksum enables it, --checksum- disables it, --checksum+ is the
// explicit-enable spelling.
type checksumValue struct{ enabled *bool }

func (c checksumValue) String() string {
	if c.enabled == nil || !*c.enabled {
		return "-"
	}
	return "+"
}

func (c checksumValue) Set(s string) error {
	switch s {
	case "", "+", "true":
		*c.enabled = true
	case "-", "false":
		*c.enabled = false
	default:
		return fmt.Errorf("config: --checksum takes no value, \"+\", or \"-\" (got %q)", s)
	}
	return nil
}

// IsBoolFlag makes `--checksum` alone (with no following argument) valid,
// matching flag's handling of boolean flags.
func (c checksumValue) IsBoolFlag() bool { return true }

// Parse builds a Config from CLI arguments, falling back to DIFFUZZ_*
// environment variables for the debug-only toggles (spec.md's ambient
// "configuration via Options + env fallback").
func Parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("diffuzz", flag.ContinueOnError)
	cfg := Config{ChecksumEnabled: true, Parallelism: -1}

	fs.StringVar(&cfg.Host, "host", "", "path to the execution-server host binary")
	fs.Uint64Var(&cfg.Seed, "seed", 0, "master seed; 0 derives one from the current time")
	fs.IntVar(&cfg.NumPrograms, "num-programs", 0, "number of programs to generate (mutually exclusive with --seconds-to-run)")
	fs.IntVar(&cfg.SecondsToRun, "seconds-to-run", 0, "stop after this many seconds (mutually exclusive with --num-programs)")
	fs.IntVar(&cfg.Parallelism, "parallelism", -1, "number of parallel workers; -1 uses GOMAXPROCS")
	fs.BoolVar(&cfg.Reduce, "reduce", false, "reduce a found divergence instead of only reporting it")
	fs.BoolVar(&cfg.ReduceUseChildProcesses, "reduce-use-child-processes", false, "let the reducer run candidates on the execution server for runtime-crash/divergence modes")
	fs.StringVar(&cfg.OutputSource, "output-source", "", "path to write the found (or reduced) program's source to")
	fs.StringVar(&cfg.OutputEventsTo, "output-events-to", "", "path to append JSON-lines run events to")
	fs.Var(checksumValue{&cfg.ChecksumEnabled}, "checksum", "enable (default) or disable (-) checksum instrumentation")
	fs.StringVar(&cfg.RemoveFixedDir, "remove-fixed", "", "directory of previously-reduced examples to re-check and prune once the bug is fixed")

	// flag cannot parse a sign glued to the flag name, so --checksum+ and
	// --checksum- are rewritten to their --checksum=<sign> form first.
	norm := make([]string, len(args))
	for i, a := range args {
		switch a {
		case "--checksum+", "-checksum+":
			a = "--checksum=+"
		case "--checksum-", "-checksum-":
			a = "--checksum=-"
		}
		norm[i] = a
	}

	if err := fs.Parse(norm); err != nil {
		return Config{}, err
	}

	if cfg.NumPrograms != 0 && cfg.SecondsToRun != 0 {
		return Config{}, fmt.Errorf("config: --num-programs and --seconds-to-run are mutually exclusive")
	}
	if cfg.NumPrograms == 0 && cfg.SecondsToRun == 0 {
		cfg.NumPrograms = 1
	}

	cfg.DebugDot = envBool("DIFFUZZ_DEBUG_DOT")
	cfg.KeepTemp = envBool("DIFFUZZ_KEEP_TEMP")

	return cfg, nil
}

func envBool(name string) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
