package ports

import "context"

type CompletionRequest struct {
	System string
	User   string
}

// TextModel is the text-understanding service. It returns the raw reply.
type TextModel interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
