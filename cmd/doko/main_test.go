package main

import "testing"

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"single word", []string{"drill"}, "drill"},
		{"multiple words", []string{"hiking", "boots"}, "hiking boots"},
		{"single quoted phrase", []string{"hiking boots"}, "hiking boots"},
		{"empty", nil, ""},
		{"whitespace trimmed", []string{" drill "}, "drill"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuery(tt.args); got != tt.want {
				t.Errorf("buildQuery(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}
