package models

import (
	"testing"
)

func TestParseOperation(t *testing.T) {
	tests := []struct {
		input   string
		want    Operation
		wantErr bool
	}{
		{"compile", OperationCompile, false},
		{"upload", OperationUpload, false},
		{"flash", OperationFlash, false},
		{"Upload", "", true},
		{"uplaod", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseOperation(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOperation(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseOperation(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
