package optionals

import "testing"

func TestSome(t *testing.T) {
	opt := Some("set-cookie")
	if !opt.IsSome() {
		t.Fatal("expected IsSome")
	}
	v, ok := opt.Get()
	if !ok || v != "set-cookie" {
		t.Fatalf("Get() = (%q, %v), want (\"set-cookie\", true)", v, ok)
	}
}

func TestNone(t *testing.T) {
	opt := None[string]()
	if opt.IsSome() {
		t.Fatal("expected !IsSome")
	}
	if _, ok := opt.Get(); ok {
		t.Fatal("expected Get() to report absent")
	}
}
