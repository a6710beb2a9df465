package access

import (
	"errors"
	"sync"
	"testing"

	"github.com/alfredjeanlab/vesting/internal/model"
)

var (
	admin = model.MustParseAddress("0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266")
	alice = model.MustParseAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
)

func TestNewGate_RejectsZero(t *testing.T) {
	for _, owner := range []model.Address{"", model.ZeroAddress} {
		if _, err := NewGate(owner); !errors.Is(err, ErrInvalidOwner) {
			t.Errorf("NewGate(%q) err = %v, want ErrInvalidOwner", owner, err)
		}
	}
}

func TestRequireAdmin(t *testing.T) {
	g, err := NewGate(admin)
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		caller model.Address
		want   error
	}{
		{admin, nil},
		{alice, ErrUnauthorized},
		{"", ErrUnauthorized},
		{model.ZeroAddress, ErrUnauthorized},
	} {
		if err := g.RequireAdmin(tc.caller); !errors.Is(err, tc.want) {
			t.Errorf("RequireAdmin(%q) = %v, want %v", tc.caller, err, tc.want)
		}
	}
}

func TestTransferOwnership(t *testing.T) {
	g, _ := NewGate(admin)

	if _, err := g.TransferOwnership(alice, alice); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-owner transfer err = %v, want ErrUnauthorized", err)
	}
	if _, err := g.TransferOwnership(admin, model.ZeroAddress); !errors.Is(err, ErrInvalidOwner) {
		t.Fatalf("zero transfer err = %v, want ErrInvalidOwner", err)
	}

	prev, err := g.TransferOwnership(admin, alice)
	if err != nil {
		t.Fatalf("TransferOwnership: %v", err)
	}
	if prev != admin || g.Owner() != alice {
		t.Fatalf("prev = %s owner = %s", prev, g.Owner())
	}
	if err := g.RequireAdmin(admin); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("old admin still authorized")
	}
}

func TestTransferOwnership_Concurrent(t *testing.T) {
	g, _ := NewGate(admin)
	var wg sync.WaitGroup
	wins := make(chan model.Address, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.TransferOwnership(admin, alice); err == nil {
				wins <- alice
			}
		}()
	}
	wg.Wait()
	close(wins)
	// Only the first transfer succeeds; afterwards admin is no longer owner.
	if n := len(wins); n != 1 {
		t.Errorf("successful transfers = %d, want 1", n)
	}
}
