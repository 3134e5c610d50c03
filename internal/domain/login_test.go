package domain

import "testing"

func TestDeriveLogin(t *testing.T) {
	t.Parallel()

	cases := []struct {
		first, last, want string
	}{
		{"Awa", "Ndiaye", "awa.ndiaye"},
		{"  Jean-Luc ", "N'Dour", "jeanluc.ndour"},
		{"Élodie", "Sène", "elodie.sene"},
		{"", "Fall", "fall"},
		{"Moussa", "", "moussa"},
		{"", "", "member"},
	}
	for _, c := range cases {
		if got := DeriveLogin(c.first, c.last); got != c.want {
			t.Fatalf("DeriveLogin(%q, %q) = %q, want %q", c.first, c.last, got, c.want)
		}
	}
}

func TestLoginCandidate(t *testing.T) {
	t.Parallel()

	if got := LoginCandidate("awa.ndiaye", 1); got != "awa.ndiaye" {
		t.Fatalf("unexpected first candidate %q", got)
	}
	if got := LoginCandidate("awa.ndiaye", 3); got != "awa.ndiaye3" {
		t.Fatalf("unexpected third candidate %q", got)
	}
}
