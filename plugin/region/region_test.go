package region

import (
	"testing"

	"github.com/google/uuid"
	"github.com/secmc/blockparty/plugin/ports"
)

func TestContainsInclusiveAndNormalised(t *testing.T) {
	r := New("mine", "Overworld", [3]int{10, 70, -5}, [3]int{0, 60, 5})
	tests := []struct {
		loc  ports.Location
		want bool
	}{
		{ports.Location{World: "overworld", X: 0, Y: 60, Z: -5}, true},
		{ports.Location{World: "overworld", X: 10, Y: 70, Z: 5}, true},
		{ports.Location{World: "overworld", X: 5, Y: 65, Z: 0}, true},
		{ports.Location{World: "overworld", X: 11, Y: 65, Z: 0}, false},
		{ports.Location{World: "overworld", X: 5, Y: 59, Z: 0}, false},
		{ports.Location{World: "nether", X: 5, Y: 65, Z: 0}, false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.loc); got != tt.want {
			t.Fatalf("Contains(%v) = %v, want %v", tt.loc, got, tt.want)
		}
	}
}

func TestValidatorPrecedence(t *testing.T) {
	regions := Set{
		New("Mine", "overworld", [3]int{0, 0, 0}, [3]int{10, 10, 10}),
		New("vault", "overworld", [3]int{5, 5, 5}, [3]int{6, 6, 6}),
		New("lobby", "overworld", [3]int{100, 0, 0}, [3]int{110, 10, 10}),
	}
	inMine := ports.Location{World: "overworld", X: 1, Y: 1, Z: 1}
	inVault := ports.Location{World: "overworld", X: 5, Y: 5, Z: 5}
	inLobby := ports.Location{World: "overworld", X: 105, Y: 5, Z: 5}
	outside := ports.Location{World: "overworld", X: 50, Y: 5, Z: 5}
	id := uuid.New()

	v := NewValidator(Settings{Enabled: true, Allowed: []string{"MINE"}, Denied: []string{"vault"}}, regions)
	if !v.Allowed(id, inMine) {
		t.Fatalf("allowed region denied")
	}
	if v.Allowed(id, inVault) {
		t.Fatalf("deny must win over allow")
	}
	if v.Allowed(id, inLobby) {
		t.Fatalf("region outside the allow list accepted")
	}
	if v.Allowed(id, outside) {
		t.Fatalf("location outside every region accepted")
	}

	open := NewValidator(Settings{Enabled: true}, regions)
	if !open.Allowed(id, inLobby) {
		t.Fatalf("empty allow list must accept any region")
	}

	off := NewValidator(Settings{}, regions)
	if !off.Allowed(id, outside) {
		t.Fatalf("disabled regions must allow everything")
	}
	if !off.InRegion(inMine) || off.InRegion(outside) {
		t.Fatalf("InRegion mismatch")
	}
}
