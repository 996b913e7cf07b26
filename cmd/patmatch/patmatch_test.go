package main

import (
	"testing"

	"github.com/Comcast/gobj/match"
	"github.com/Comcast/gobj/value"
)

func TestWanted(t *testing.T) {
	pattern := value.MustParse(`{"likes":["?liked"]}`)
	message := value.MustParse(`{"likes":["tacos","chips"]}`)
	bss, err := match.Match(pattern, message, match.NewBindings())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"both", `[{"?liked":"tacos"},{"?liked":"chips"}]`, true},
		{"one", `[{"?liked":"chips"}]`, true},
		{"typo", `[{"?liked":"chipss"}]`, false},
		{"extra", `[{"?liked":"tacos","?x":1}]`, false},
		{"none", `[]`, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Wanted(value.MustParse(tc.want), bss, false); got != tc.ok {
				t.Fatal(got)
			}
		})
	}
}
