package middlewares

import (
	"net/url"
	"testing"
)

func TestCanonicalizeSortsAndExcludesHash(t *testing.T) {
	values := url.Values{}
	values.Set("round_id", "R1")
	values.Set("action", "bet")
	values.Set("amount", "10")
	values.Set("hash", "deadbeef")

	got := Canonicalize(values)
	want := "action=bet&amount=10&round_id=R1"
	if got != want {
		t.Errorf("Canonicalize = %q, want %q", got, want)
	}
}

func TestVerifySignature(t *testing.T) {
	secret := "s3cret"
	values := url.Values{}
	values.Set("action", "win")
	values.Set("txn_id", "T1")
	values.Set("amount", "25")
	values.Set("hash", Sign(values, secret))

	if !VerifySignature(values, secret) {
		t.Error("valid signature rejected")
	}

	values.Set("amount", "9999")
	if VerifySignature(values, secret) {
		t.Error("tampered payload accepted")
	}
}

func TestVerifySignatureMissingPieces(t *testing.T) {
	values := url.Values{}
	values.Set("action", "bet")
	if VerifySignature(values, "secret") {
		t.Error("payload without hash accepted")
	}

	values.Set("hash", Sign(values, "secret"))
	if VerifySignature(values, "") {
		t.Error("empty secret accepted")
	}
}
