package typeid

import (
	"strings"
	"testing"
)

func TestNewSurfaceID(t *testing.T) {
	id := NewSurfaceID()
	if !strings.HasPrefix(id, PrefixSurface+"_") {
		t.Fatalf("NewSurfaceID() = %q, want %s_ prefix", id, PrefixSurface)
	}
	if err := Validate(id, PrefixSurface); err != nil {
		t.Errorf("Validate() failed: %v", err)
	}
}

func TestIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewSurfaceID()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestValidateWrongPrefix(t *testing.T) {
	if err := Validate(NewVersionID(), PrefixSurface); err == nil {
		t.Error("Validate() accepted a version id as a surface id")
	}
	if err := Validate("not-an-id", PrefixSurface); err == nil {
		t.Error("Validate() accepted garbage")
	}
}
