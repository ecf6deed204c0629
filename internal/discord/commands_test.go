package discord

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		content  string
		wantName string
		wantArgs string
		wantOK   bool
	}{
		{name: "ask with prompt", content: "!ia qual a capital?", wantName: "ia", wantArgs: "qual a capital?", wantOK: true},
		{name: "bare command", content: "!status", wantName: "status", wantArgs: "", wantOK: true},
		{name: "uppercase name lowered", content: "!IA oi", wantName: "ia", wantArgs: "oi", wantOK: true},
		{name: "extra spaces trimmed", content: "!limpar   ", wantName: "limpar", wantArgs: "", wantOK: true},
		{name: "no prefix", content: "ia oi", wantOK: false},
		{name: "prefix alone", content: "!", wantOK: false},
		{name: "prefix then space", content: "! ia", wantOK: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			name, args, ok := parseCommand(tt.content, "!")
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantName, name)
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestStripMentions(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "qual a capital?", stripMentions("<@99> qual a capital?", "99"))
	assert.Equal(t, "oi", stripMentions("<@!99> oi", "99"))
	assert.Equal(t, "", stripMentions("<@99>", "99"))
}
