package policy

import (
	"testing"
	"time"
)

func TestNewStore_Defaults(t *testing.T) {
	s := NewStore(StoreConfig{})

	for _, name := range []string{"ping", "dig", "ip", "ss", "df", "hostname"} {
		if s.Lookup(name) == nil {
			t.Errorf("default store missing command %q", name)
		}
	}
	if s.Lookup("bash") != nil {
		t.Error("default store must not whitelist bash")
	}

	limits := s.Limits()
	if limits.DefaultTimeout != DefaultTimeout {
		t.Errorf("default timeout = %v, want %v", limits.DefaultTimeout, DefaultTimeout)
	}
	if limits.MaxTimeout != MaxTimeout {
		t.Errorf("max timeout = %v, want %v", limits.MaxTimeout, MaxTimeout)
	}
	if limits.MaxOutputBytes != DefaultMaxOutputBytes {
		t.Errorf("max output bytes = %d, want %d", limits.MaxOutputBytes, DefaultMaxOutputBytes)
	}

	if got := len(s.AllowedRoots()); got == 0 {
		t.Error("default store has no allowed roots")
	}
	if got := len(s.SecretPatterns()); got == 0 {
		t.Error("default store has no secret patterns")
	}
}

func TestNewStore_PerCommandTimeoutDefaults(t *testing.T) {
	s := NewStore(StoreConfig{
		Commands: []CommandPolicy{
			{Name: "slowtool", MaxTimeout: 10 * time.Second},
			{Name: "fasttool"},
		},
		Limits: Limits{MaxTimeout: 60 * time.Second},
	})

	if got := s.Lookup("slowtool").MaxTimeout; got != 10*time.Second {
		t.Errorf("slowtool max timeout = %v, want 10s", got)
	}
	// Unset per-command timeout inherits the global cap.
	if got := s.Lookup("fasttool").MaxTimeout; got != 60*time.Second {
		t.Errorf("fasttool max timeout = %v, want 60s", got)
	}
}

func TestCommandNamesSorted(t *testing.T) {
	s := NewStore(StoreConfig{})
	names := s.CommandNames()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("command names not sorted: %v", names)
		}
	}
}
