package daraja

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "254712345678", want: "254712345678"},
		{input: "+254712345678", want: "254712345678"},
		{input: "0712345678", want: "254712345678"},
		{input: "0112345678", want: "254112345678"},
		{input: "0712 345 678", want: "254712345678"},
		{input: "0712-345-678", want: "254712345678"},
		{input: "712345678", wantErr: true},
		{input: "25471234567", wantErr: true},
		{input: "2547123456789", wantErr: true},
		{input: "254812345678", wantErr: true},
		{input: "", wantErr: true},
		{input: "hello", wantErr: true},
	}

	for _, tt := range tests {
		got, err := NormalizePhone(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NormalizePhone(%q) expected error, got %q", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizePhone(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
