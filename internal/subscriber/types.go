package subscriber

// DirectoryMessage represents any message received in the directory pub/sub channel.
type DirectoryMessage struct {
	Action Action `json:"action"`
}

type Action string

const (
	Reload Action = "reload"
)

func (a *Action) IsValid() bool {
	switch *a {
	case Reload:
		return true
	}
	return false
}

// Reloader re-reads the company directory.
type Reloader interface {
	Reload() error
}

// Notifier tells connected clients the directory changed.
type Notifier interface {
	NotifyDirectoryUpdated() error
}
