package geobase

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
)

func newKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, EncryptionKeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand.Read failed: %v", err)
	}
	return key
}

func TestEncryptionBackend_InvalidKeyLength(t *testing.T) {
	backend := NewFilesystemBackend(t.TempDir())

	for _, length := range []int{0, 16, 24, 31, 33, 64} {
		_, err := NewEncryptionBackend(backend, make([]byte, length))
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("key length %d: expected ErrInvalidConfig, got %v", length, err)
		}
	}
}

func TestEncryptionBackend_PutAndGet(t *testing.T) {
	ctx := context.Background()
	plain := NewFilesystemBackend(t.TempDir())
	enc, err := NewEncryptionBackend(plain, newKey(t))
	if err != nil {
		t.Fatalf("NewEncryptionBackend failed: %v", err)
	}

	original := []byte(`{"name": "Santa Fe", "state_code": "NM"}`)
	if err := enc.Put(ctx, "seDB/Cities/a.json", original); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	stored, _ := plain.Get(ctx, "seDB/Cities/a.json")
	if bytes.Contains(stored, []byte("Santa Fe")) {
		t.Error("document body should be encrypted in storage")
	}

	got, err := enc.Get(ctx, "seDB/Cities/a.json")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Errorf("Get = %s, want %s", got, original)
	}
}

func TestEncryptionBackend_Compliance(t *testing.T) {
	ctx := context.Background()
	build := func(t *testing.T) Backend {
		enc, err := NewEncryptionBackend(NewFilesystemBackend(t.TempDir()), newKey(t))
		if err != nil {
			t.Fatalf("NewEncryptionBackend failed: %v", err)
		}
		return enc
	}

	t.Run("BasicCRUD", func(t *testing.T) { testBasicCRUD(t, ctx, build(t)) })
	t.Run("ETagOperations", func(t *testing.T) { testETagOperations(t, ctx, build(t)) })
	t.Run("ListOperations", func(t *testing.T) { testListOperations(t, ctx, build(t)) })
	t.Run("ErrorHandling", func(t *testing.T) { testErrorHandling(t, ctx, build(t)) })
}

func TestEncryptionBackend_WrongKey(t *testing.T) {
	ctx := context.Background()
	plain := NewFilesystemBackend(t.TempDir())
	writer, _ := NewEncryptionBackend(plain, newKey(t))
	reader, _ := NewEncryptionBackend(plain, newKey(t))

	_ = writer.Put(ctx, "k.json", []byte(`{}`))
	if _, err := reader.Get(ctx, "k.json"); !IsStorage(err) {
		t.Errorf("wrong key: expected ErrStorage, got %v", err)
	}

	_ = plain.Put(ctx, "short.json", []byte("x"))
	if _, _, err := reader.GetWithETag(ctx, "short.json"); !IsStorage(err) {
		t.Errorf("truncated ciphertext: expected ErrStorage, got %v", err)
	}
}

func TestEncryptionBackend_BodyBoundToKey(t *testing.T) {
	ctx := context.Background()
	plain := NewFilesystemBackend(t.TempDir())
	enc, _ := NewEncryptionBackend(plain, newKey(t))

	_ = enc.Put(ctx, "seDB/Cities/a.json", []byte(`{"name": "Taos"}`))
	sealed, _ := plain.Get(ctx, "seDB/Cities/a.json")
	_ = plain.Put(ctx, "seDB/Cities/b.json", sealed)

	if _, err := enc.Get(ctx, "seDB/Cities/b.json"); !IsStorage(err) {
		t.Errorf("body moved to another key: expected ErrStorage, got %v", err)
	}
}

func TestParseEncryptionKey(t *testing.T) {
	good := base64.StdEncoding.EncodeToString(newKey(t))
	if key, err := ParseEncryptionKey(good); err != nil || len(key) != EncryptionKeySize {
		t.Errorf("ParseEncryptionKey(valid) = %d bytes, %v", len(key), err)
	}

	for _, bad := range []string{"not base64!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		if _, err := ParseEncryptionKey(bad); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("ParseEncryptionKey(%q): expected ErrInvalidConfig, got %v", bad, err)
		}
	}
}

func TestDocumentStore_Encrypted(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.EncryptionKey = base64.StdEncoding.EncodeToString(newKey(t))

	store := NewDocumentStore(NewConnector(cfg))
	if _, err := store.Create(ctx, "Cities", Document{"name": "Taos", "state_code": "NM"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	res, err := store.Update(ctx, "Cities", Filter{"name": "Taos"}, Document{"population": 6500})
	if err != nil || res.ModifiedCount != 1 {
		t.Fatalf("Update = %+v, %v", res, err)
	}
	doc, err := store.ReadOne(ctx, "Cities", Filter{"name": "Taos"})
	if err != nil || doc == nil {
		t.Fatalf("ReadOne = %v, %v", doc, err)
	}
	if n, _ := doc.Int64("population"); n != 6500 {
		t.Errorf("population = %v", doc["population"])
	}

	// Without the key the stored bytes are unreadable
	raw := NewFilesystemBackend(cfg.DataPath)
	keys, _ := raw.List(ctx, "seDB/Cities/")
	if len(keys) != 1 {
		t.Fatalf("expected one stored key, got %v", keys)
	}
	data, _ := raw.Get(ctx, keys[0])
	if bytes.Contains(data, []byte("Taos")) {
		t.Error("stored document should be encrypted")
	}
}

func TestConfig_InvalidEncryptionKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.EncryptionKey = "tooshort"
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
