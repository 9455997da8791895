package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSecret(t *testing.T, dir, name, value string, perm os.FileMode) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(value), perm); err != nil {
		t.Fatalf("failed to write secret: %v", err)
	}
	if err := os.Chmod(filepath.Join(dir, name), perm); err != nil {
		t.Fatalf("failed to chmod secret: %v", err)
	}
}

func TestEnvProvider(t *testing.T) {
	t.Setenv("TEST_SECRET_RESOURCE_KEY", "AQS5HKcyHJbechH")
	p := NewEnvProvider("TEST_SECRET_")

	got, err := p.GetSecret(context.Background(), "resource-key")
	if err != nil || got != "AQS5HKcyHJbechH" {
		t.Errorf("GetSecret() = %q, %v", got, err)
	}
	if _, err := p.GetSecret(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSecret(missing) error = %v, want ErrNotFound", err)
	}
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "resource-key", "from-file\n", 0o600)
	writeSecret(t, dir, "loose", "x", 0o644)

	p, err := NewFileProvider(dir)
	if err != nil {
		t.Fatalf("NewFileProvider() error = %v", err)
	}
	ctx := context.Background()

	if got, err := p.GetSecret(ctx, "resource-key"); err != nil || got != "from-file" {
		t.Errorf("GetSecret() = %q, %v", got, err)
	}
	if _, err := p.GetSecret(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing error = %v, want ErrNotFound", err)
	}
	if _, err := p.GetSecret(ctx, "loose"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("loose permissions error = %v", err)
	}
	if _, err := p.GetSecret(ctx, "../etc/passwd"); err == nil {
		t.Error("expected traversal error")
	}

	if _, err := NewFileProvider(filepath.Join(dir, "resource-key")); err == nil {
		t.Error("expected error for a non-directory")
	}
}

func TestResolver_ResolveReferences(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "file-key", "file-value", 0o400)
	fp, err := NewFileProvider(dir)
	if err != nil {
		t.Fatalf("NewFileProvider() error = %v", err)
	}
	t.Setenv("TEST_SECRET_ENV_KEY", "env-value")

	r := NewResolver(time.Minute, NewEnvProvider("TEST_SECRET_"), fp)
	ctx := context.Background()

	got, err := r.ResolveReferences(ctx, "${secret:env-key}/${secret:file-key}")
	if err != nil || got != "env-value/file-value" {
		t.Errorf("ResolveReferences() = %q, %v", got, err)
	}

	got, err = r.ResolveReferences(ctx, "plain")
	if err != nil || got != "plain" {
		t.Errorf("ResolveReferences(plain) = %q, %v", got, err)
	}

	got, err = r.ResolveReferences(ctx, "${secret:nope}")
	if !errors.Is(err, ErrNotFound) || got != "${secret:nope}" {
		t.Errorf("ResolveReferences(nope) = %q, %v", got, err)
	}
}

func TestResolver_Cache(t *testing.T) {
	t.Setenv("TEST_SECRET_KEY", "first")
	r := NewResolver(time.Minute, NewEnvProvider("TEST_SECRET_"))
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	ctx := context.Background()

	if got, _ := r.GetSecret(ctx, "key"); got != "first" {
		t.Fatalf("GetSecret() = %q", got)
	}
	t.Setenv("TEST_SECRET_KEY", "second")
	if got, _ := r.GetSecret(ctx, "key"); got != "first" {
		t.Errorf("cached GetSecret() = %q, want first", got)
	}

	now = now.Add(2 * time.Minute)
	if got, _ := r.GetSecret(ctx, "key"); got != "second" {
		t.Errorf("expired GetSecret() = %q, want second", got)
	}

	t.Setenv("TEST_SECRET_KEY", "third")
	r.Clear()
	if got, _ := r.GetSecret(ctx, "key"); got != "third" {
		t.Errorf("GetSecret() after Clear = %q, want third", got)
	}
}

func TestHasReferences(t *testing.T) {
	if !HasReferences("${secret:a}") || HasReferences("$secret:a") {
		t.Error("HasReferences mismatch")
	}
}
