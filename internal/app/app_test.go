package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/sund3RRR/mcctl/config"
	"github.com/sund3RRR/mcctl/internal/adapters/mojang"
	"github.com/sund3RRR/mcctl/pkg/logger"
	"github.com/sund3RRR/mcctl/pkg/rcon"
	"github.com/sund3RRR/mcctl/pkg/server"
)

func newTestApp(t *testing.T, cfg config.Config, input string) (*App, *bytes.Buffer) {
	t.Helper()

	out := &bytes.Buffer{}
	console := NewConsole(strings.NewReader(input), out, out, false)
	log := logger.NewWithOutput(logger.ERROR, io.Discard)
	return NewApp(cfg, log, mojang.New(cfg.Download), console), out
}

// startRconServer answers logins with password and echoes weather commands.
func startRconServer(t *testing.T, password string) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()

				login, err := rcon.ReadResponse(conn)
				if err != nil {
					return
				}
				reply := rcon.Packet{ID: login.ID, Type: rcon.TypeCommand}
				if login.Payload != password {
					reply.ID = -1
				}
				reply.WriteTo(conn)

				for {
					req, err := rcon.ReadResponse(conn)
					if err != nil {
						return
					}
					answer := "Set the weather to " + strings.TrimPrefix(req.Payload, "weather ")
					rcon.Packet{ID: req.ID, Payload: []byte(answer)}.WriteTo(conn)
				}
			}()
		}
	}()

	return l.Addr().String()
}

func TestRunRcon(t *testing.T) {
	addr := startRconServer(t, "1234")
	cfg := config.NewConfig()
	cfg.Rcon.Address = addr
	cfg.Rcon.Password = "1234"

	app, out := newTestApp(t, cfg, "weather rain\nweather clear\n\nweather thunder\n")
	assert.NoError(t, app.RunRcon(context.Background(), "", "", nil))

	assert.Contains(t, out.String(), "Connected to "+addr)
	assert.Contains(t, out.String(), "Set the weather to rain\n")
	assert.Contains(t, out.String(), "Set the weather to clear\n")
	assert.NotContains(t, out.String(), "thunder")
}

func TestRunRconAsksForPassword(t *testing.T) {
	addr := startRconServer(t, "secret")
	cfg := config.NewConfig()
	cfg.Rcon.Password = ""

	asked := false
	app, out := newTestApp(t, cfg, "weather rain\n")
	err := app.RunRcon(context.Background(), addr, "", func() (string, error) {
		asked = true
		return "secret", nil
	})
	assert.NoError(t, err)
	assert.True(t, asked)
	assert.Contains(t, out.String(), "Set the weather to rain")
}

func TestRunRconWrongPassword(t *testing.T) {
	addr := startRconServer(t, "secret")

	app, _ := newTestApp(t, config.NewConfig(), "")
	err := app.RunRcon(context.Background(), addr, "wrong", nil)
	assert.IsError(t, err, rcon.ErrLoginFailed)
}

func TestRunRconNoPassword(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Rcon.Password = ""

	app, _ := newTestApp(t, cfg, "")
	err := app.RunRcon(context.Background(), "127.0.0.1:1", "", nil)
	assert.IsError(t, err, ErrNoPassword)
}

func TestServerBuilderFromConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Server.Dir = t.TempDir()
	cfg.Server.World = "survival"
	cfg.Server.Properties = map[string]string{"enable-rcon": "true", "motd": "hi"}

	app, _ := newTestApp(t, cfg, "")
	builder, err := app.serverBuilder()
	assert.NoError(t, err)

	sc, err := builder.Build()
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Server.Dir, "server.jar"), sc.Executable)
	assert.Equal(t, "survival", sc.World)
	assert.Equal(t, server.Launcher{Path: "java", Args: []string{"-Xmx2G", "-jar"}}, sc.Launcher)
	assert.Equal(t, "hi", sc.Properties["motd"])
	assert.Equal(t, 36, len(sc.Properties["rcon.password"]))

	// The configuration itself is not modified.
	_, ok := cfg.Server.Properties["rcon.password"]
	assert.False(t, ok)
}

func TestEnsureRconPasswordKeepsStoredPassword(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, server.PropertiesFile), []byte("rcon.password=stored\n"), 0o644))

	app, _ := newTestApp(t, config.NewConfig(), "")
	props := map[string]string{"enable-rcon": "true"}
	assert.NoError(t, app.ensureRconPassword(dir, props))
	assert.Equal(t, "stored", props["rcon.password"])

	disabled := map[string]string{"enable-rcon": "false"}
	assert.NoError(t, app.ensureRconPassword(dir, disabled))
	_, ok := disabled["rcon.password"]
	assert.False(t, ok)
}

func TestDownload(t *testing.T) {
	jar := []byte("fake jar")
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/manifest.json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"latest": {"release": "1.21.4"}, "versions": [{"id": "1.21.4", "type": "release", "url": "%s/v.json", "releaseTime": "2024-12-03T10:12:57+00:00"}]}`, srv.URL)
	})
	mux.HandleFunc("/v.json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"downloads": {"server": {"url": "%s/server.jar"}}}`, srv.URL)
	})
	mux.HandleFunc("/server.jar", func(w http.ResponseWriter, _ *http.Request) {
		w.Write(jar)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.NewConfig()
	cfg.Server.Dir = t.TempDir()
	cfg.Download.ManifestURL = srv.URL + "/manifest.json"

	app, out := newTestApp(t, cfg, "")
	assert.NoError(t, app.Download(context.Background(), ""))
	assert.Contains(t, out.String(), "Downloaded 1.21.4: 8 bytes written")

	data, err := os.ReadFile(cfg.Server.ExecutablePath())
	assert.NoError(t, err)
	assert.Equal(t, jar, data)

	err = app.Download(context.Background(), "0.0.1")
	assert.IsError(t, err, mojang.ErrVersionNotFound)
}

// TestHelperProcess is not a real test. It stands in for the server runtime
// running the data generator.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	dir := filepath.Join("generated", "reports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		os.Exit(2)
	}
	blocks := `{"minecraft:air": {"states": [{"id": 0, "default": true}]}, "minecraft:oak_log": {"properties": {"axis": ["x", "y", "z"]}, "states": [{"id": 1, "properties": {"axis": "x"}}, {"id": 2, "default": true, "properties": {"axis": "y"}}, {"id": 3, "properties": {"axis": "z"}}]}}`
	if err := os.WriteFile(filepath.Join(dir, server.ReportBlocksFile), []byte(blocks), 0o644); err != nil {
		os.Exit(2)
	}
	os.Exit(0)
}

func TestReports(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/manifest.json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"latest": {"release": "1.21.4"}, "versions": [{"id": "1.21.4", "type": "release", "url": "%s/v.json", "releaseTime": "2024-12-03T10:12:57+00:00"}]}`, srv.URL)
	})
	mux.HandleFunc("/v.json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"downloads": {"server": {"url": "%s/server.jar"}}}`, srv.URL)
	})
	mux.HandleFunc("/server.jar", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("fake jar"))
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	cfg := config.NewConfig()
	cfg.Download.ManifestURL = srv.URL + "/manifest.json"
	cfg.Server.Java = os.Args[0]
	cfg.Server.JavaArgs = []string{"-test.run=TestHelperProcess", "--"}

	out := filepath.Join(t.TempDir(), "reports")
	app, console := newTestApp(t, cfg, "")
	assert.NoError(t, app.Reports(context.Background(), "1.21.4", out))
	assert.Contains(t, console.String(), "Generated reports for 1.21.4: 2 blocks, 4 block states")

	jar, err := os.ReadFile(filepath.Join(out, server.DefaultExecutable))
	assert.NoError(t, err)
	assert.Equal(t, "fake jar", string(jar))
	_, err = os.Stat(filepath.Join(out, "generated", "reports", server.ReportBlocksFile))
	assert.NoError(t, err)

	// Without an output directory the work directory is discarded.
	assert.NoError(t, app.Reports(context.Background(), "", ""))

	err = app.Reports(context.Background(), "0.0.1", "")
	assert.IsError(t, err, mojang.ErrVersionNotFound)
}
