package agent

import (
	"context"
	"time"

	"github.com/avoskres/assisted-search/internal/core/domain"
)

// LoopAgent gives a retrieval loop an identity and its own deadline so
// several of them can run side by side.
type LoopAgent struct {
	descriptor domain.AgentDescriptor
	loop       *Loop
}

func NewLoopAgent(descriptor domain.AgentDescriptor, loop *Loop) *LoopAgent {
	return &LoopAgent{descriptor: descriptor, loop: loop}
}

func (a *LoopAgent) ID() string {
	return a.descriptor.ID
}

func (a *LoopAgent) Name() string {
	return a.descriptor.Name
}

func (a *LoopAgent) Run(ctx context.Context, req domain.RetrievalRequest, sink domain.EventSink) (*domain.RetrievalOutcome, error) {
	if a.descriptor.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(a.descriptor.TimeoutMs)*time.Millisecond)
		defer cancel()
	}
	return a.loop.Run(ctx, req, sink)
}
