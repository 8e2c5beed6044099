package factory

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/cymbal-air/retrieval-service/internal/config"
	"github.com/cymbal-air/retrieval-service/internal/datastore/memory"
)

func TestNewMemory(t *testing.T) {
	ds, err := New(context.Background(), config.DatastoreConfig{Kind: config.KindMemory}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := ds.(*memory.Store); !ok {
		t.Errorf("expected memory store, got %T", ds)
	}
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New(context.Background(), config.DatastoreConfig{Kind: "mongodb"}, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
