package model

import (
	"errors"
	"testing"
)

func TestValidateTokenID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"numeric clob id", "21742633143463906290569050155826241533067272736897614950488156847949938836455", false},
		{"with dash and underscore", "abc_DEF-123456", false},
		{"too short", "123456789", true},
		{"empty", "", true},
		{"whitespace only", "            ", true},
		{"bad char", "12345678901234;", true},
		{"json fragment", "[\"1234567890\"]", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTokenID(tt.id)
			if tt.wantErr && !errors.Is(err, ErrInvalidTokenID) {
				t.Errorf("ValidateTokenID(%q) = %v, want ErrInvalidTokenID", tt.id, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateTokenID(%q) unexpected error: %v", tt.id, err)
			}
		})
	}
}

func TestMarketRankingVolume(t *testing.T) {
	if got := (Market{Volume24h: 5, VolumeTotal: 100}).RankingVolume(); got != 5 {
		t.Errorf("RankingVolume = %v, want 5", got)
	}
	if got := (Market{VolumeTotal: 100}).RankingVolume(); got != 100 {
		t.Errorf("RankingVolume fallback = %v, want 100", got)
	}
}
