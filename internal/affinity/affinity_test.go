package affinity

import (
	"testing"
)

func TestOwner(t *testing.T) {
	o := Capture()
	if !o.Owned() {
		t.Fatal("capturing goroutine should own")
	}
	o.Check("test")

	done := make(chan any)
	go func() {
		defer func() { done <- recover() }()
		if o.Owned() {
			t.Error("other goroutine should not own")
		}
		o.Check("test")
	}()
	if r := <-done; r == nil {
		t.Fatal("Check from another goroutine should panic")
	}
}

func TestZeroOwner(t *testing.T) {
	var o Owner
	if o.Owned() {
		t.Fatal("zero owner is never owned")
	}
	o.Check("noop")
}
