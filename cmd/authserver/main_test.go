package main

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/Tadeu17/authentication-template/internal/appconfig"
	"github.com/Tadeu17/authentication-template/mail"
	"github.com/Tadeu17/authentication-template/store/memory"
)

func TestOpenStoreDefaultsToMemory(t *testing.T) {
	st, closer, err := openStore(context.Background(), &appconfig.Config{StorageBackend: appconfig.StorageMemory})
	if err != nil {
		t.Fatalf("openStore failed: %v", err)
	}
	if _, ok := st.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", st)
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestOpenStoreRejectsBadRedisURL(t *testing.T) {
	_, _, err := openStore(context.Background(), &appconfig.Config{
		StorageBackend: appconfig.StorageRedis,
		RedisURL:       "not-a-url",
	})
	if err == nil {
		t.Fatal("expected error for malformed REDIS_URL")
	}
}

func TestNewMailer(t *testing.T) {
	log := zap.NewNop()

	m, err := newMailer(&appconfig.Config{EmailBackend: appconfig.EmailMemory}, log)
	if err != nil {
		t.Fatalf("newMailer failed: %v", err)
	}
	if _, ok := m.(*mail.Recorder); !ok {
		t.Fatalf("expected recorder, got %T", m)
	}

	m, err = newMailer(&appconfig.Config{EmailBackend: appconfig.EmailConsole}, log)
	if err != nil {
		t.Fatalf("newMailer failed: %v", err)
	}
	if _, ok := m.(*mail.Console); !ok {
		t.Fatalf("expected console mailer, got %T", m)
	}

	if _, err := newMailer(&appconfig.Config{EmailBackend: appconfig.EmailSMTP}, log); err == nil {
		t.Fatal("expected error for smtp without host")
	}
}
