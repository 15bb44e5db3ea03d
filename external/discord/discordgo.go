package discord

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/foxseedlab/suma/internal/discord"
)

// Client only uses the REST API, so it never opens a gateway connection.
type Client struct {
	session *discordgo.Session
}

func NewClient(token string) (discordpkg.Client, error) {
	if token == "" {
		return disabledClient{}, nil
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &Client{session: s}, nil
}

func (c *Client) Enabled() bool {
	return true
}

func (c *Client) ResolveChannelName(channelID string) (string, error) {
	channel, err := c.session.Channel(channelID)
	if err != nil {
		if isRESTNotFound(err) {
			return "", fmt.Errorf("discord channel %s not found", channelID)
		}
		return "", err
	}
	return channel.Name, nil
}

func (c *Client) SendChannelMessageWithFile(msg discordpkg.FileMessage) error {
	_, err := c.session.ChannelMessageSendComplex(msg.ChannelID, &discordgo.MessageSend{
		Content: msg.Content,
		Files: []*discordgo.File{
			{Name: msg.Filename, ContentType: "text/plain", Reader: bytes.NewReader(msg.FileBody)},
		},
	})
	return err
}

func (c *Client) Close() error {
	return c.session.Close()
}

func isRESTNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response == nil {
		return false
	}
	return restErr.Response.StatusCode == http.StatusNotFound
}

type disabledClient struct{}

func (disabledClient) Enabled() bool { return false }

func (disabledClient) ResolveChannelName(string) (string, error) { return "", nil }

func (disabledClient) SendChannelMessageWithFile(discordpkg.FileMessage) error { return nil }

func (disabledClient) Close() error { return nil }
