package network

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Network
		wantErr bool
	}{
		{"", Testnet, false},
		{"testnet", Testnet, false},
		{" MAINNET ", Mainnet, false},
		{"emulator", Emulator, false},
		{"devnet", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNext(t *testing.T) {
	if got := Testnet.Next(); got != Mainnet {
		t.Errorf("Testnet.Next() = %q, want mainnet", got)
	}
	if got := Emulator.Next(); got != Testnet {
		t.Errorf("Emulator.Next() = %q, want testnet", got)
	}
	if got := Network("bogus").Next(); got != Default {
		t.Errorf("bogus.Next() = %q, want %q", got, Default)
	}
}

func TestAccessNode(t *testing.T) {
	for _, n := range All() {
		if !n.Valid() {
			t.Errorf("%q should be valid", n)
		}
		if n.AccessNode() == "" {
			t.Errorf("%q has no access node", n)
		}
	}
	if Network("bogus").AccessNode() != "" {
		t.Error("unknown network should have no access node")
	}
}
