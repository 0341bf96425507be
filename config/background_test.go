package config_test

import (
	"context"
	"testing"

	"github.com/sipwire/core/config"
)

func TestStartBackgroundCheck_CompletesImmediately(t *testing.T) {
	bg, err := config.StartBackgroundCheck(context.Background(), nil, config.AppProxy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case <-bg.Done():
	default:
		t.Fatal("expected Done() to already be closed")
	}
	if bg.Err() != nil {
		t.Errorf("Err() = %v, want nil for a non-canceled context", bg.Err())
	}
}
