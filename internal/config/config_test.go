package config

import "testing"

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]string{"--host", "/bin/host"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Host != "/bin/host" {
		t.Fatalf("got Host %q, want /bin/host", cfg.Host)
	}
	if !cfg.ChecksumEnabled {
		t.Fatal("ChecksumEnabled should default to true")
	}
	if cfg.NumPrograms != 1 {
		t.Fatalf("got NumPrograms %d, want 1 (default when neither flag is set)", cfg.NumPrograms)
	}
	if cfg.Parallelism != -1 {
		t.Fatalf("got Parallelism %d, want -1 (GOMAXPROCS sentinel)", cfg.Parallelism)
	}
}

func TestParseMutuallyExclusiveBoundFlags(t *testing.T) {
	_, err := Parse([]string{"--host", "h", "--num-programs", "5", "--seconds-to-run", "10"})
	if err == nil {
		t.Fatal("expected error combining --num-programs and --seconds-to-run")
	}
}

func TestParseChecksumToggle(t *testing.T) {
	cfg, err := Parse([]string{"--host", "h", "--checksum-"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.ChecksumEnabled {
		t.Fatal("--checksum- should disable checksum instrumentation")
	}

	cfg, err = Parse([]string{"--host", "h", "--checksum"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfg.ChecksumEnabled {
		t.Fatal("bare --checksum should enable checksum instrumentation")
	}
}

func TestParseRejectsBadChecksumValue(t *testing.T) {
	_, err := Parse([]string{"--host", "h", "--checksum=maybe"})
	if err == nil {
		t.Fatal("expected error for an unrecognized --checksum value")
	}
}
