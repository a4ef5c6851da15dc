//go:build !windows

package broadcast

import (
	"context"
	"fmt"
)

// ChromaSource is unavailable outside Windows; Init always fails.
type ChromaSource struct {
	dll string
}

func newChromaSource(dll string) *ChromaSource {
	return &ChromaSource{dll: dll}
}

// Name returns "chroma".
func (s *ChromaSource) Name() string { return SourceChroma }

// Init returns ErrUnsupported.
func (s *ChromaSource) Init(context.Context, string) error {
	return fmt.Errorf("%w: %s needs Windows", ErrUnsupported, s.dll)
}

// Subscribe returns ErrNotInitialized.
func (s *ChromaSource) Subscribe(chan<- Event) error { return ErrNotInitialized }

// Unsubscribe is a no-op.
func (s *ChromaSource) Unsubscribe() error { return nil }

// Close is a no-op.
func (s *ChromaSource) Close() error { return nil }
