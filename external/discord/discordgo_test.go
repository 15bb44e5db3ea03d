package discord

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/foxseedlab/suma/internal/discord"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestSession(t *testing.T, rt roundTripFunc) *discordgo.Session {
	t.Helper()
	s, err := discordgo.New("Bot test-token")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if rt != nil {
		s.Client = &http.Client{Transport: rt}
	}
	return s
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestNewClient_DisabledWithoutToken(t *testing.T) {
	c, err := NewClient("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Enabled() {
		t.Fatal("expected disabled client")
	}
	if err := c.SendChannelMessageWithFile(discordpkg.FileMessage{ChannelID: "x"}); err != nil {
		t.Fatalf("disabled client must not fail, got %v", err)
	}
}

func TestSendChannelMessageWithFile_UploadsReport(t *testing.T) {
	var gotPath, gotFilename, gotBody string
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		gotPath = req.URL.Path
		_, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
		if err != nil {
			t.Errorf("unexpected content type: %v", err)
			return jsonResponse(http.StatusBadRequest, `{}`), nil
		}
		reader := multipart.NewReader(req.Body, params["boundary"])
		for {
			part, err := reader.NextPart()
			if err != nil {
				break
			}
			if part.FileName() != "" {
				gotFilename = part.FileName()
				b, _ := io.ReadAll(part)
				gotBody = string(b)
			}
		}
		return jsonResponse(http.StatusOK, `{"id":"m-1","channel_id":"ch-1"}`), nil
	})

	c := &Client{session: s}
	err := c.SendChannelMessageWithFile(discordpkg.FileMessage{
		ChannelID: "ch-1",
		Content:   "Reporte",
		Filename:  "consulta.txt",
		FileBody:  []byte("contenido"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(gotPath, "/channels/ch-1/messages") {
		t.Fatalf("unexpected request path: %s", gotPath)
	}
	if gotFilename != "consulta.txt" || gotBody != "contenido" {
		t.Fatalf("unexpected attachment: %q %q", gotFilename, gotBody)
	}
}

func TestResolveChannelName(t *testing.T) {
	s := newTestSession(t, func(req *http.Request) (*http.Response, error) {
		if strings.HasSuffix(req.URL.Path, "/channels/ch-1") {
			return jsonResponse(http.StatusOK, `{"id":"ch-1","name":"triaje","type":0}`), nil
		}
		return jsonResponse(http.StatusNotFound, `{"message":"Unknown Channel","code":10003}`), nil
	})
	c := &Client{session: s}

	name, err := c.ResolveChannelName("ch-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "triaje" {
		t.Fatalf("expected triaje, got %q", name)
	}
	if _, err := c.ResolveChannelName("missing"); err == nil {
		t.Fatal("expected error for unknown channel")
	}
}
