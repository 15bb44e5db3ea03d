package discord

type FileMessage struct {
	ChannelID string
	Content   string
	Filename  string
	FileBody  []byte
}

// Client posts consultation reports to a Discord text channel.
type Client interface {
	Enabled() bool
	// ResolveChannelName fails when the channel is unknown or not visible to
	// the bot.
	ResolveChannelName(channelID string) (string, error)
	SendChannelMessageWithFile(msg FileMessage) error
	Close() error
}
