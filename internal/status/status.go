// Package status queries a running server with the server list ping.
package status

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/xrjr/mcutils/pkg/ping"
)

// DefaultPort is the game port used when an address has none.
const DefaultPort = 25565

var (
	// ErrPingFailed is returned when the server does not answer the status request.
	ErrPingFailed = errors.New("server list ping failed")

	// ErrFailedToDecode is returned when the status document has an unexpected shape.
	ErrFailedToDecode = errors.New("failed to decode server status")

	// ErrInvalidAddress is returned for addresses that are not host or host:port.
	ErrInvalidAddress = errors.New("invalid server address")
)

// Status is the summary of a server list ping.
type Status struct {
	Version     string        // Version name reported by the server
	Protocol    int           // Protocol number
	Players     int           // Players online
	MaxPlayers  int           // Player limit
	Sample      []string      // Names of some online players
	Description string        // Message of the day as plain text
	Latency     time.Duration // Round trip of the ping
}

type minecraftStatus struct {
	Version struct {
		Name     string `json:"name"`
		Protocol int    `json:"protocol"`
	} `json:"version"`
	Players struct {
		Max    int `json:"max"`
		Online int `json:"online"`
		Sample []struct {
			Name string `json:"name"`
			ID   string `json:"id"`
		} `json:"sample"`
	} `json:"players"`
	Description any `json:"description"` // Plain string or chat component
}

// Check pings the server at host:port.
func Check(host string, port int) (Status, error) {
	properties, latency, err := ping.Ping(host, port)
	if err != nil {
		return Status{}, fmt.Errorf("%w: %s: %w", ErrPingFailed, net.JoinHostPort(host, strconv.Itoa(port)), err)
	}

	status, err := Decode(properties)
	if err != nil {
		return Status{}, err
	}
	status.Latency = time.Duration(latency) * time.Millisecond
	return status, nil
}

// Decode converts a raw status document, as returned by the ping, into a Status.
func Decode(properties any) (Status, error) {
	data, err := sonic.Marshal(properties)
	if err != nil {
		return Status{}, fmt.Errorf("%w: %w", ErrFailedToDecode, err)
	}

	var raw minecraftStatus
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return Status{}, fmt.Errorf("%w: %w", ErrFailedToDecode, err)
	}

	status := Status{
		Version:     raw.Version.Name,
		Protocol:    raw.Version.Protocol,
		Players:     raw.Players.Online,
		MaxPlayers:  raw.Players.Max,
		Description: DescriptionText(raw.Description),
	}
	for _, p := range raw.Players.Sample {
		status.Sample = append(status.Sample, p.Name)
	}
	return status, nil
}

// DescriptionText flattens a description into plain text. Chat components
// contribute their text followed by the text of their extra components.
func DescriptionText(description any) string {
	var b strings.Builder
	writeComponent(&b, description)
	return b.String()
}

func writeComponent(b *strings.Builder, component any) {
	switch c := component.(type) {
	case string:
		b.WriteString(c)
	case []any:
		for _, item := range c {
			writeComponent(b, item)
		}
	case map[string]any:
		if text, ok := c["text"].(string); ok {
			b.WriteString(text)
		}
		if extra, ok := c["extra"]; ok {
			writeComponent(b, extra)
		}
	}
}

// ParseAddress splits host[:port], defaulting the port to DefaultPort.
func ParseAddress(address string) (string, int, error) {
	if address == "" {
		return "", 0, fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}

	switch {
	case !strings.Contains(address, ":"):
		return address, DefaultPort, nil
	case strings.HasPrefix(address, "[") && strings.HasSuffix(address, "]"):
		return address[1 : len(address)-1], DefaultPort, nil
	}

	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %s: %w", ErrInvalidAddress, address, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("%w: %s: bad port", ErrInvalidAddress, address)
	}
	return host, port, nil
}
