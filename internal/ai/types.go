package ai

import (
	"context"
	"errors"
)

// Request represents one generation request. Constructed fresh per attempt.
type Request struct {
	Model        string
	Prompt       string
	JSONResponse bool // ask the service to return a single structured JSON value
}

type Response struct {
	Text string
}

// Client is the transport to an external generation service.
type Client interface {
	Name() string
	Generate(ctx context.Context, req Request) (Response, error)
}

var ErrRateLimited = errors.New("rate_limited")

func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }
