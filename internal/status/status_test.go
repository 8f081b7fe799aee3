package status

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestDecode(t *testing.T) {
	properties := map[string]any{
		"version": map[string]any{"name": "1.21.4", "protocol": 769},
		"players": map[string]any{
			"max":    20,
			"online": 2,
			"sample": []any{
				map[string]any{"name": "Steve", "id": "8667ba71-b85a-4004-af54-457a9734eed7"},
				map[string]any{"name": "Alex", "id": "ec561538-f3fd-461d-aff5-086b22154bce"},
			},
		},
		"description": map[string]any{
			"text":  "A ",
			"extra": []any{map[string]any{"text": "Minecraft", "color": "green"}, " Server"},
		},
	}

	status, err := Decode(properties)
	assert.NoError(t, err)
	assert.Equal(t, Status{
		Version:     "1.21.4",
		Protocol:    769,
		Players:     2,
		MaxPlayers:  20,
		Sample:      []string{"Steve", "Alex"},
		Description: "A Minecraft Server",
	}, status)
}

func TestDecodeBadShape(t *testing.T) {
	_, err := Decode(map[string]any{"players": "many"})
	assert.IsError(t, err, ErrFailedToDecode)
}

func TestDescriptionText(t *testing.T) {
	tests := []struct {
		name        string
		description any
		want        string
	}{
		{name: "plain string", description: "A Minecraft Server", want: "A Minecraft Server"},
		{name: "component", description: map[string]any{"text": "Hello"}, want: "Hello"},
		{
			name: "nested extra",
			description: map[string]any{
				"text": "",
				"extra": []any{
					map[string]any{"text": "a", "extra": []any{map[string]any{"text": "b"}}},
					map[string]any{"text": "c"},
				},
			},
			want: "abc",
		},
		{name: "missing", description: nil, want: ""},
		{name: "unexpected type", description: 42.0, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DescriptionText(tt.description))
		})
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		address string
		host    string
		port    int
	}{
		{address: "mc.example.com", host: "mc.example.com", port: DefaultPort},
		{address: "127.0.0.1:25570", host: "127.0.0.1", port: 25570},
		{address: "[::1]:25565", host: "::1", port: 25565},
		{address: "[::1]", host: "::1", port: DefaultPort},
		{address: "::1", host: "", port: 0},
		{address: "mc.example.com:", host: "", port: 0},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			host, port, err := ParseAddress(tt.address)
			if tt.host == "" {
				assert.IsError(t, err, ErrInvalidAddress)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.port, port)
		})
	}

	_, _, err := ParseAddress("host:notaport")
	assert.IsError(t, err, ErrInvalidAddress)
	_, _, err = ParseAddress("")
	assert.IsError(t, err, ErrInvalidAddress)
}

func TestCheckUnreachable(t *testing.T) {
	_, err := Check("127.0.0.1", 1)
	assert.IsError(t, err, ErrPingFailed)
}
