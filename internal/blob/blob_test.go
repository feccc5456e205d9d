package blob

import (
	"context"
	"strings"
	"testing"
)

func TestOpenSelectsDriverFromEnv(t *testing.T) {
	ctx := context.Background()
	t.Setenv(EnvFSRoot, t.TempDir())

	t.Setenv(EnvDriver, "")
	s, err := Open(ctx)
	if err != nil || s.Driver() != DriverFilesystem {
		t.Fatalf("default driver: %v %v", s, err)
	}

	t.Setenv(EnvDriver, "memory")
	s, err = Open(ctx)
	if err != nil || s.Driver() != DriverMemory {
		t.Fatalf("memory driver: %v %v", s, err)
	}

	t.Setenv(EnvDriver, "s3")
	t.Setenv(EnvS3Bucket, "")
	if _, err := Open(ctx); err == nil || !strings.Contains(err.Error(), EnvS3Bucket) {
		t.Fatalf("expected missing bucket error, got %v", err)
	}

	t.Setenv(EnvDriver, "tape")
	if _, err := Open(ctx); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestOpenS3FromEnv(t *testing.T) {
	t.Setenv(EnvDriver, "s3")
	t.Setenv(EnvS3Bucket, "worklists")
	t.Setenv(EnvS3Region, "eu-west-1")
	t.Setenv(EnvS3Endpt, "http://127.0.0.1:9000")
	t.Setenv(EnvPathStyle, "true")
	t.Setenv("AWS_ACCESS_KEY_ID", "AKID")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "SECRET")
	s, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Driver() != DriverS3 {
		t.Fatalf("driver = %s", s.Driver())
	}
}
