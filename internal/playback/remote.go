package playback

// Sender pushes a message to every connection a user has open.
type Sender interface {
	SendToUser(userID uint, messageType string, data interface{})
}

const MessageCommand = "media.command"

// MediaCommand is pushed to the browser, which applies it to the video element.
type MediaCommand struct {
	CourseID uint    `json:"course_id"`
	Op       string  `json:"op"`
	Value    float64 `json:"value"`
	Muted    bool    `json:"muted"`
}

// RemoteMedia is a media element living in the learner's browser. Commands are
// sent over the user's websocket; reads come from the last values the browser
// reported or that were commanded.
type RemoteMedia struct {
	sender   Sender
	userID   uint
	courseID uint

	currentTime float64
	duration    float64
	volume      float64
	muted       bool
}

func NewRemoteMedia(sender Sender, userID, courseID uint) *RemoteMedia {
	return &RemoteMedia{
		sender:   sender,
		userID:   userID,
		courseID: courseID,
		volume:   1,
	}
}

func (m *RemoteMedia) send(cmd MediaCommand) {
	cmd.CourseID = m.courseID
	m.sender.SendToUser(m.userID, MessageCommand, cmd)
}

func (m *RemoteMedia) Play() {
	m.send(MediaCommand{Op: "play"})
}

func (m *RemoteMedia) Pause() {
	m.send(MediaCommand{Op: "pause"})
}

func (m *RemoteMedia) CurrentTime() float64 {
	return m.currentTime
}

func (m *RemoteMedia) SetCurrentTime(t float64) {
	m.currentTime = t
	m.send(MediaCommand{Op: "seek", Value: t})
}

func (m *RemoteMedia) Duration() float64 {
	return m.duration
}

func (m *RemoteMedia) Volume() float64 {
	return m.volume
}

func (m *RemoteMedia) SetVolume(v float64) {
	m.volume = v
	m.send(MediaCommand{Op: "volume", Value: v})
}

func (m *RemoteMedia) Muted() bool {
	return m.muted
}

func (m *RemoteMedia) SetMuted(muted bool) {
	m.muted = muted
	m.send(MediaCommand{Op: "mute", Muted: muted})
}

// observe records a position reported by the browser.
func (m *RemoteMedia) observe(currentTime, duration float64) {
	if finite(currentTime) {
		m.currentTime = currentTime
	}
	if finite(duration) && duration >= 0 {
		m.duration = duration
	}
}
