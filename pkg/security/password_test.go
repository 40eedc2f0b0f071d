package security_test

import (
	"strings"
	"testing"

	"github.com/angelmondragon/brewpos-backend/pkg/config"
	"github.com/angelmondragon/brewpos-backend/pkg/security"
)

func testConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8192,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerify(t *testing.T) {
	hasher := security.NewHasher(testConfig())

	hash, err := hasher.Hash("flat-white-42")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected hash format %q", hash)
	}

	ok, err := hasher.Verify("flat-white-42", hash)
	if err != nil || !ok {
		t.Fatalf("expected password to verify, ok=%v err=%v", ok, err)
	}
	ok, err = hasher.Verify("cortado", hash)
	if err != nil {
		t.Fatalf("Verify returned error for wrong password: %v", err)
	}
	if ok {
		t.Fatal("Verify accepted the wrong password")
	}
}

func TestHashRejectsEmptyPassword(t *testing.T) {
	if _, err := security.NewHasher(testConfig()).Hash(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestVerifyBadHash(t *testing.T) {
	hasher := security.NewHasher(testConfig())
	for _, encoded := range []string{"not-a-hash", "$argon2i$v=19$m=1,t=1,p=1$aa$bb", "$argon2id$v=18$m=1,t=1,p=1$aa$bb"} {
		if _, err := hasher.Verify("x", encoded); err != security.ErrInvalidHash {
			t.Fatalf("expected ErrInvalidHash for %q, got %v", encoded, err)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	weak := security.NewHasher(testConfig())
	hash, err := weak.Hash("espresso")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if weak.NeedsRehash(hash) {
		t.Fatal("hash made with current params should not need rehash")
	}

	cfg := testConfig()
	cfg.ArgonTime = 2
	if !security.NewHasher(cfg).NeedsRehash(hash) {
		t.Fatal("expected rehash after raising time cost")
	}
	if !weak.NeedsRehash("garbage") {
		t.Fatal("malformed hashes need rehash")
	}
}
