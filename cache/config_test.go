package cache

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultConfig(t *testing.T) {
	want := Config{
		Backend:            BackendMemory,
		Capacity:           10000,
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
	}
	if diff := cmp.Diff(want, DefaultConfig()); diff != "" {
		t.Errorf("DefaultConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestConfig_Validate(t *testing.T) {
	sturdyc := DefaultConfig()
	sturdyc.Backend = BackendSturdyc

	badSturdyc := sturdyc
	badSturdyc.Capacity = 0

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"zero value means memory", Config{}, false},
		{"memory ignores sizing", Config{Backend: BackendMemory, Capacity: -1}, false},
		{"sturdyc", sturdyc, false},
		{"sturdyc sizing checked", badSturdyc, true},
		{"unknown backend", Config{Backend: "redis"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewCacheService_Backends(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendSturdyc
	cfg.Capacity = 10
	cfg.NumShards = 2

	for _, c := range []Config{DefaultConfig(), cfg} {
		svc, err := NewCacheService(c)
		if err != nil {
			t.Fatalf("%s: %v", c.Backend, err)
		}
		if svc.Size() != 0 {
			t.Errorf("%s: new cache not empty", c.Backend)
		}
	}

	if _, err := NewCacheService(Config{Backend: "redis"}); err == nil {
		t.Error("expected an error for an unknown backend")
	}
}
