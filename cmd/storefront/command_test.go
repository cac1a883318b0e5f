package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"", Command{}},
		{"   ", Command{}},
		{"list", Command{Verb: VerbList}},
		{"LS", Command{Verb: VerbList}},
		{"page 3", Command{Verb: VerbPage, N: 3}},
		{"size 12", Command{Verb: VerbSize, N: 12}},
		{"sort pricedesc", Command{Verb: VerbSort, Text: "priceDesc"}},
		{"search  blue hat ", Command{Verb: VerbSearch, Text: "blue hat"}},
		{"search", Command{Verb: VerbSearch, Text: ""}},
		{"brands Angular, React", Command{Verb: VerbBrands, List: []string{"Angular", "React"}}},
		{"types", Command{Verb: VerbTypes, List: []string{}}},
		{"show 7", Command{Verb: VerbShow, ProductID: 7}},
		{"add 4", Command{Verb: VerbAdd, ProductID: 4, Quantity: 1}},
		{"add 4 3", Command{Verb: VerbAdd, ProductID: 4, Quantity: 3}},
		{"rm 4 2", Command{Verb: VerbRemove, ProductID: 4, Quantity: 2}},
		{"pay", Command{Verb: VerbCheckout}},
		{"exit", Command{Verb: VerbQuit}},
		{"login ada@example.com Secret123", Command{Verb: VerbLogin, Email: "ada@example.com", Password: "Secret123"}},
		{"signup ada@example.com Secret123 Ada  Lovelace", Command{Verb: VerbRegister, Email: "ada@example.com", Password: "Secret123", Text: "Ada Lovelace"}},
		{"logout", Command{Verb: VerbLogout}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseCommand(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommand_Errors(t *testing.T) {
	tests := []struct {
		line    string
		wantErr string
	}{
		{"dance", `unknown command "dance"`},
		{"page", "usage: page <n>"},
		{"page two", `"two" is not a number`},
		{"page 0", "must be at least 1"},
		{"sort cheapest", `unknown sort order "cheapest"`},
		{"add", "usage: add <id> [qty]"},
		{"add 1 2 3", "usage: add <id> [qty]"},
		{"add x", "product id"},
		{"remove 1 -1", "quantity"},
		{"cart now", "cart takes no arguments"},
		{"login ada@example.com", "usage: login <email> <password>"},
		{"register ada@example.com Secret123", "usage: register"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := ParseCommand(tt.line)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
