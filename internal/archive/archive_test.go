package archive

import (
	"context"
	"testing"

	"stockcore/internal/config"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		cfg  config.ArchiveConfig
		want Driver
	}{
		{config.ArchiveConfig{Driver: "memory"}, DriverMemory},
		{config.ArchiveConfig{Driver: "fs", FSRoot: t.TempDir()}, DriverFilesystem},
		{config.ArchiveConfig{Driver: "s3", S3Bucket: "b", S3Endpoint: "http://localhost:9000", S3PathStyle: true}, DriverS3},
	}
	for _, tc := range cases {
		store, err := Open(ctx, tc.cfg)
		if err != nil {
			t.Fatalf("open %s: %v", tc.cfg.Driver, err)
		}
		if store.Driver() != tc.want {
			t.Fatalf("expected %s, got %s", tc.want, store.Driver())
		}
	}
	if _, err := Open(ctx, config.ArchiveConfig{Driver: "tape"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(ctx, config.ArchiveConfig{Driver: "s3"}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}
