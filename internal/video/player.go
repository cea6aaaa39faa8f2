// Package video manages the trailer players behind carousel slides.
package video

import (
	"errors"
	"sync"

	"github.com/spotlightapp/spotlight-server/internal/domain"
)

// ErrAutoplayBlocked is returned by Player.Play when the browser refused
// unmuted playback.
var ErrAutoplayBlocked = errors.New("video: autoplay blocked")

// Player controls one trailer.
type Player interface {
	Play() error
	Pause()
	SetMuted(muted bool)
	SetVolume(volume int)
	Seek(seconds float64)
	// Show cross-fades the placeholder backdrop into the video.
	Show()
	// CurrentTime reports the playback position; ok is false when the player
	// can no longer be reached.
	CurrentTime() (seconds float64, ok bool)
	Playing() bool
	Destroy()
}

// PlayerFactory creates players for slides.
type PlayerFactory interface {
	NewPlayer(key domain.PlayerKey, slide *domain.Slide, video domain.VideoInfo) (Player, error)
}

// Action names a command the browser executes against a player.
type Action string

// Player commands.
const (
	ActionCreate  Action = "create"
	ActionPlay    Action = "play"
	ActionPause   Action = "pause"
	ActionMute    Action = "mute"
	ActionVolume  Action = "volume"
	ActionSeek    Action = "seek"
	ActionShow    Action = "show"
	ActionDestroy Action = "destroy"
)

// Command is one instruction for the browser-side player.
type Command struct {
	PlayerKey   domain.PlayerKey   `json:"player_key"`
	Action      Action             `json:"action"`
	ContainerID string             `json:"container_id,omitempty"`
	Source      domain.VideoSource `json:"source,omitempty"`
	VideoID     string             `json:"video_id,omitempty"`
	URL         string             `json:"url,omitempty"`
	Muted       *bool              `json:"muted,omitempty"`
	Volume      *int               `json:"volume,omitempty"`
	Position    *float64           `json:"position,omitempty"`
}

// Sender delivers commands to the browser.
type Sender interface {
	SendCommand(cmd Command)
}

// RemotePlayer is a player living in the browser. Commands travel over the
// event stream; the browser reports position and state back.
type RemotePlayer struct {
	key    domain.PlayerKey
	sender Sender

	mu        sync.Mutex
	position  float64
	playing   bool
	destroyed bool
}

// RemoteFactory creates RemotePlayers.
type RemoteFactory struct {
	Sender Sender
}

// NewPlayer announces the player to the browser.
func (f RemoteFactory) NewPlayer(key domain.PlayerKey, slide *domain.Slide, video domain.VideoInfo) (Player, error) {
	p := &RemotePlayer{key: key, sender: f.Sender}
	cmd := Command{
		PlayerKey: key,
		Action:    ActionCreate,
		Source:    video.Source,
		VideoID:   video.VideoID,
		URL:       video.URL,
	}
	if slide.Node != nil {
		cmd.ContainerID = slide.Node.ContainerID
	}
	f.Sender.SendCommand(cmd)
	return p, nil
}

func (p *RemotePlayer) send(cmd Command) {
	p.mu.Lock()
	gone := p.destroyed
	p.mu.Unlock()
	if gone {
		return
	}
	cmd.PlayerKey = p.key
	p.sender.SendCommand(cmd)
}

// Play asks the browser to play. A refusal arrives later as a report.
func (p *RemotePlayer) Play() error {
	p.send(Command{Action: ActionPlay})
	return nil
}

func (p *RemotePlayer) Pause() {
	p.send(Command{Action: ActionPause})
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
}

func (p *RemotePlayer) SetMuted(muted bool) {
	p.send(Command{Action: ActionMute, Muted: &muted})
}

func (p *RemotePlayer) SetVolume(volume int) {
	p.send(Command{Action: ActionVolume, Volume: &volume})
}

func (p *RemotePlayer) Seek(seconds float64) {
	p.send(Command{Action: ActionSeek, Position: &seconds})
	p.mu.Lock()
	p.position = seconds
	p.mu.Unlock()
}

func (p *RemotePlayer) Show() {
	p.send(Command{Action: ActionShow})
}

// Report records what the browser says about playback.
func (p *RemotePlayer) Report(position float64, playing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = position
	p.playing = playing
}

func (p *RemotePlayer) CurrentTime() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position, !p.destroyed
}

func (p *RemotePlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing && !p.destroyed
}

func (p *RemotePlayer) Destroy() {
	p.send(Command{Action: ActionDestroy})
	p.mu.Lock()
	p.destroyed = true
	p.playing = false
	p.mu.Unlock()
}
