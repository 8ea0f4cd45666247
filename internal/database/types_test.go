package database

import "testing"

func TestPersonSignatures(t *testing.T) {
	tests := []struct {
		name           string
		person         Person
		wantFace       bool
		wantAppearance bool
	}{
		{"neither", Person{ID: 1}, false, false},
		{"face only", Person{ID: 2, FaceSignature: []float32{0.1}}, true, false},
		{"appearance only", Person{ID: 3, AppearanceSignature: []float32{0.2}}, false, true},
		{"both", Person{ID: 4, FaceSignature: []float32{0.1}, AppearanceSignature: []float32{0.2}}, true, true},
		{"empty slices count as absent", Person{ID: 5, FaceSignature: []float32{}}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.person.HasFace(); got != tt.wantFace {
				t.Errorf("HasFace() = %v, want %v", got, tt.wantFace)
			}
			if got := tt.person.HasAppearance(); got != tt.wantAppearance {
				t.Errorf("HasAppearance() = %v, want %v", got, tt.wantAppearance)
			}
		})
	}
}
