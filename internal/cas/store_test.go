package cas

import "testing"

func TestHashOfRoundTrip(t *testing.T) {
	b := []byte("hello fighter")
	h := HashOf(b)
	if err := VerifyHash(h); err != nil {
		t.Fatalf("VerifyHash(%q): %v", h, err)
	}
}

func TestPutIdempotent(t *testing.T) {
	s := New()
	b := []byte("payload")
	h := HashOf(b)

	s.Put(h, b)
	s.Put(h, b)

	got, ok := s.Get(h)
	if !ok {
		t.Fatalf("expected %q present", h)
	}
	if string(got) != string(b) {
		t.Fatalf("got %q, want %q", got, b)
	}
}

func TestHasAndMissing(t *testing.T) {
	s := New()
	a, b := []byte("a"), []byte("b")
	ha, hb := HashOf(a), HashOf(b)
	s.Put(ha, a)

	if !s.Has(ha) {
		t.Fatalf("expected %q present", ha)
	}
	if s.Has(hb) {
		t.Fatalf("expected %q absent", hb)
	}

	missing := s.Missing([]string{ha, hb})
	if len(missing) != 1 || missing[0] != hb {
		t.Fatalf("Missing = %v, want [%s]", missing, hb)
	}
}

func TestMutatingCallerBufferDoesNotCorruptStore(t *testing.T) {
	s := New()
	b := []byte{1, 2, 3}
	h := HashOf(b)
	s.Put(h, b)
	b[0] = 0xFF

	got, _ := s.Get(h)
	if got[0] != 1 {
		t.Fatalf("store was aliased to caller buffer: got[0] = %d", got[0])
	}
}
