package config

import (
	"testing"
	"time"
)

func TestLoadIncludesPipelineDefaults(t *testing.T) {
	t.Setenv("PROCESS_MAX_ATTEMPTS", "")
	t.Setenv("PROCESS_INITIAL_DELAY_MS", "")
	t.Setenv("MIN_FREE_MEMORY_BYTES", "")
	t.Setenv("WORKER_CONCURRENCY", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("KEYWORD_LIMIT", "")

	cfg := Load()
	if cfg.ProcessMaxAttempts != 5 {
		t.Fatalf("expected default max attempts 5, got %d", cfg.ProcessMaxAttempts)
	}
	if cfg.ProcessInitialDelay != 5*time.Second {
		t.Fatalf("expected default initial delay 5s, got %s", cfg.ProcessInitialDelay)
	}
	if cfg.MinFreeMemoryBytes != 10*1024*1024 {
		t.Fatalf("expected default memory floor 10MiB, got %d", cfg.MinFreeMemoryBytes)
	}
	if cfg.WorkerConcurrency != 3 {
		t.Fatalf("expected default concurrency 3, got %d", cfg.WorkerConcurrency)
	}
	if cfg.StoreDriver != StoreDriverPostgres {
		t.Fatalf("expected default store driver postgres, got %q", cfg.StoreDriver)
	}
	if cfg.KeywordLimit != 10 {
		t.Fatalf("expected default keyword limit 10, got %d", cfg.KeywordLimit)
	}
}

func TestLoadParsesPipelineOverrides(t *testing.T) {
	t.Setenv("PROCESS_MAX_ATTEMPTS", "7")
	t.Setenv("PROCESS_INITIAL_DELAY_MS", "250")
	t.Setenv("MIN_FREE_MEMORY_BYTES", "1048576")
	t.Setenv("STORE_DRIVER", "Firestore")
	t.Setenv("DOWNLOAD_RPS", "2.5")
	t.Setenv("DOWNLOAD_INSECURE_TLS", "true")
	t.Setenv("DELETE_AFTER_PROCESS", "false")

	cfg := Load()
	if cfg.ProcessMaxAttempts != 7 {
		t.Fatalf("expected max attempts 7, got %d", cfg.ProcessMaxAttempts)
	}
	if cfg.ProcessInitialDelay != 250*time.Millisecond {
		t.Fatalf("expected initial delay 250ms, got %s", cfg.ProcessInitialDelay)
	}
	if cfg.MinFreeMemoryBytes != 1<<20 {
		t.Fatalf("expected memory floor 1MiB, got %d", cfg.MinFreeMemoryBytes)
	}
	if cfg.StoreDriver != StoreDriverFirestore {
		t.Fatalf("expected firestore driver, got %q", cfg.StoreDriver)
	}
	if cfg.DownloadRPS != 2.5 || !cfg.DownloadInsecureTLS || cfg.DeleteAfterProcess {
		t.Fatalf("unexpected download settings %+v", cfg)
	}
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("PROCESS_MAX_ATTEMPTS", "many")
	t.Setenv("PROCESS_INITIAL_DELAY_MS", "-5")
	t.Setenv("MIN_FREE_MEMORY_BYTES", "lots")
	t.Setenv("BREAKER_FAILURE_RATIO", "half")

	cfg := Load()
	if cfg.ProcessMaxAttempts != 5 || cfg.ProcessInitialDelay != 5*time.Second {
		t.Fatalf("expected defaults for malformed values, got attempts=%d delay=%s", cfg.ProcessMaxAttempts, cfg.ProcessInitialDelay)
	}
	if cfg.MinFreeMemoryBytes != 10*1024*1024 || cfg.BreakerFailureRatio != 0.5 {
		t.Fatalf("expected defaults for malformed values, got %+v", cfg)
	}
}
