package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.AI.Model != "gemini-2.5-flash" {
		t.Errorf("model = %q", cfg.AI.Model)
	}
	if cfg.Convert.MaxRetries != 5 {
		t.Errorf("max retries = %d", cfg.Convert.MaxRetries)
	}
	if cfg.Convert.MaxTokensPerBatch != 800000 {
		t.Errorf("token budget = %d", cfg.Convert.MaxTokensPerBatch)
	}
	if cfg.Convert.MaxBatchSize != 20 {
		t.Errorf("batch size = %d", cfg.Convert.MaxBatchSize)
	}
	if cfg.Convert.BatchDelay != 10*time.Second || cfg.Convert.SheetDelay != 5*time.Second {
		t.Errorf("delays = %v / %v", cfg.Convert.BatchDelay, cfg.Convert.SheetDelay)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_MODEL", "gemini-2.5-pro")
	t.Setenv("MAX_BATCH_SIZE", "3")
	t.Setenv("BATCH_DELAY", "1s")
	t.Setenv("LOG_PRETTY", "true")

	cfg := FromEnv()
	if cfg.AI.Model != "gemini-2.5-pro" {
		t.Errorf("model = %q", cfg.AI.Model)
	}
	if cfg.Convert.MaxBatchSize != 3 {
		t.Errorf("batch size = %d", cfg.Convert.MaxBatchSize)
	}
	if cfg.Convert.BatchDelay != time.Second {
		t.Errorf("batch delay = %v", cfg.Convert.BatchDelay)
	}
	if !cfg.Logging.Pretty {
		t.Error("pretty logging override ignored")
	}
}

func TestParseHelpers(t *testing.T) {
	if parseInt("12", 5) != 12 || parseInt("junk", 5) != 5 || parseInt("", 5) != 5 {
		t.Error("parseInt")
	}
	if !parseBool("1") || !parseBool("TRUE") || !parseBool("yes") || parseBool("0") || parseBool("") {
		t.Error("parseBool")
	}
	if parseDuration("2m", time.Second) != 2*time.Minute || parseDuration("junk", time.Second) != time.Second {
		t.Error("parseDuration")
	}
}
