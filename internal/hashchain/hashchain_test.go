package hashchain_test

import (
	"testing"

	"github.com/veridianhq/veridian-ledger/internal/hashchain"
)

func TestCompute_deterministic(t *testing.T) {
	canonical := []byte(`{"action":"application_submitted","seq":0}`)

	h1 := hashchain.Compute(canonical, hashchain.GenesisHash)
	h2 := hashchain.Compute(canonical, hashchain.GenesisHash)
	if h1 != h2 {
		t.Errorf("same inputs produced different hashes: %s vs %s", h1, h2)
	}
	if !hashchain.IsDigest(h1) {
		t.Errorf("computed hash is not a valid digest: %q", h1)
	}
}

func TestCompute_prevHashChangesOutput(t *testing.T) {
	canonical := []byte(`{"a":1}`)

	h1 := hashchain.Compute(canonical, hashchain.GenesisHash)
	h2 := hashchain.Compute(canonical, h1)
	if h1 == h2 {
		t.Error("different prev hashes produced identical output")
	}
}

func TestCompute_contentChangesOutput(t *testing.T) {
	h1 := hashchain.Compute([]byte(`{"a":1}`), hashchain.GenesisHash)
	h2 := hashchain.Compute([]byte(`{"a":2}`), hashchain.GenesisHash)
	if h1 == h2 {
		t.Error("different content produced identical output")
	}
}

func TestGenesisHash_isNotADigest(t *testing.T) {
	if hashchain.IsDigest(hashchain.GenesisHash) {
		t.Errorf("genesis sentinel %q must not look like a real digest", hashchain.GenesisHash)
	}
}

func TestIsDigest(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{hashchain.Compute([]byte("x"), hashchain.GenesisHash), true},
		{"", false},
		{"abc", false},
		{"zz" + hashchain.Compute([]byte("x"), hashchain.GenesisHash)[2:], false},
	}
	for _, tc := range cases {
		if got := hashchain.IsDigest(tc.in); got != tc.want {
			t.Errorf("IsDigest(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
