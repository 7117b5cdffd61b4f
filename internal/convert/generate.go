package convert

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/local/sheetmd/internal/ai"
	"github.com/local/sheetmd/internal/metrics"
	"github.com/rs/zerolog/log"
)

// GenerationError is the terminal failure after the retry budget is spent.
type GenerationError struct {
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// serverWaitPattern matches the wait hint some rate-limit bodies carry,
// e.g. "Please retry in 24.775s".
var serverWaitPattern = regexp.MustCompile(`retry in (\d+(?:\.\d+)?)s`)

const hintBuffer = 1500 * time.Millisecond

// Generator drives an ai.Client with retry and backoff. One instance serves
// both batch and single-table payloads; only the payload differs.
//
// Two transition rules, keyed on error class:
//   - rate-limit (429 sentinel or quota-flavored message): sleep the
//     server-hinted wait plus a small buffer when a hint is present; without a
//     hint, take the exponential step.
//   - anything else: exponential step, or propagate when the attempt budget
//     is spent.
type Generator struct {
	client       ai.Client
	model        string
	maxRetries   int
	initialDelay time.Duration

	sleep func(time.Duration) // swapped out in tests
}

func NewGenerator(client ai.Client, model string, maxRetries int, initialDelay time.Duration) *Generator {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if initialDelay <= 0 {
		initialDelay = 10 * time.Second
	}
	return &Generator{
		client:       client,
		model:        model,
		maxRetries:   maxRetries,
		initialDelay: initialDelay,
		sleep:        time.Sleep,
	}
}

// Generate sends the payload, retrying per the rules above, and returns the
// raw response text. Each attempt constructs a fresh request.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < g.maxRetries; attempt++ {
		start := time.Now()
		resp, err := g.client.Generate(ctx, ai.Request{
			Model:        g.model,
			Prompt:       prompt,
			JSONResponse: true,
		})
		dur := time.Since(start)

		if err == nil {
			metrics.ObserveGeneration(g.model, "success", dur)
			log.Debug().Str("model", g.model).Int("attempt", attempt+1).Dur("duration", dur).Msg("generation succeeded")
			return resp.Text, nil
		}

		lastErr = err
		last := attempt == g.maxRetries-1

		if isRateLimitError(err) {
			metrics.ObserveGeneration(g.model, "rate_limited", dur)
			if last {
				break
			}
			if wait, ok := serverHintedWait(err); ok {
				total := wait + hintBuffer
				log.Warn().Str("model", g.model).Int("attempt", attempt+1).Dur("wait", total).Msg("rate limited, honoring server wait hint")
				metrics.IncRetry("rate_limited")
				g.sleep(total)
				continue
			}
			// no hint: fall through to the exponential step
		} else {
			metrics.ObserveGeneration(g.model, "error", dur)
			if last {
				break
			}
		}

		delay := g.initialDelay * (1 << attempt)
		log.Warn().Err(err).Str("model", g.model).Int("attempt", attempt+1).Int("max", g.maxRetries).Dur("wait", delay).Msg("generation attempt failed, backing off")
		metrics.IncRetry("backoff")
		g.sleep(delay)
	}

	metrics.ObserveGeneration(g.model, "exhausted", 0)
	return "", &GenerationError{Attempts: g.maxRetries, Err: lastErr}
}

// isRateLimitError spots 429/quota failures either by sentinel or by message,
// since upstream error text is all some transport layers give us.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	if ai.IsRateLimited(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota")
}

// serverHintedWait extracts a server-suggested wait duration from the error
// text, when present.
func serverHintedWait(err error) (time.Duration, bool) {
	m := serverWaitPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, false
	}
	secs, perr := strconv.ParseFloat(m[1], 64)
	if perr != nil {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}
