//go:build !opus

package audio

import (
	"errors"
	"testing"

	"github.com/foxseedlab/suma/internal/audio"
)

func TestNewOpusDecoder_UnavailableWithoutTag(t *testing.T) {
	dec, err := NewOpusDecoder(16000)
	if !errors.Is(err, audio.ErrCodecUnavailable) {
		t.Fatalf("expected ErrCodecUnavailable, got %v", err)
	}
	if dec != nil {
		t.Fatal("expected nil decoder")
	}
}
