package checksum

import "testing"

func TestSum(t *testing.T) {
	// Known sha256 of "abc".
	got := Sum([]byte("abc"))
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("Sum = %s, want %s", got, want)
	}
}

func TestSumEmpty(t *testing.T) {
	got := Sum(nil)
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got != want {
		t.Errorf("Sum(nil) = %s", got)
	}
}
