package db

import (
	"context"
	"testing"
	"time"

	"github.com/morezero/ocpp-central-system/pkg/bootstrap"
)

const poolTestPrefix = "db:pool_test"

func TestNewPool_BadURL(t *testing.T) {
	for _, url := range []string{"", "invalid://not-a-valid-database-url"} {
		pool, err := NewPool(context.Background(), url)
		if err == nil {
			pool.Close()
			t.Fatalf("%s - NewPool(%q) expected error", poolTestPrefix, url)
		}
		if pool != nil {
			t.Errorf("%s - expected nil pool on error", poolTestPrefix)
		}
	}
}

func TestSeed_EmptyConfigSkipsDatabase(t *testing.T) {
	if err := Seed(context.Background(), nil, &bootstrap.SeedConfig{Name: "empty"}); err != nil {
		t.Errorf("%s - Seed(empty) = %v, want nil", poolTestPrefix, err)
	}
}

func TestOppositeDirection(t *testing.T) {
	if got := OppositeDirection(DirectionInbound); got != DirectionOutbound {
		t.Errorf("%s - OppositeDirection(C2S) = %s", poolTestPrefix, got)
	}
	if got := OppositeDirection(DirectionOutbound); got != DirectionInbound {
		t.Errorf("%s - OppositeDirection(S2C) = %s", poolTestPrefix, got)
	}
}

func TestTransaction_Open(t *testing.T) {
	now := time.Now()
	if !(&Transaction{}).Open() {
		t.Errorf("%s - transaction without stop time reported closed", poolTestPrefix)
	}
	if (&Transaction{StopTime: &now}).Open() {
		t.Errorf("%s - stopped transaction reported open", poolTestPrefix)
	}
}
