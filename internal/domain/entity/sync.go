package entity

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// DefaultRemoteHost is the login host that serves the EOS web area.
const DefaultRemoteHost = "lxplus.cern.ch"

// DefaultWebRoot is the EOS web directory template. {initial} and {user} are
// replaced by the first letter of the user name and the user name.
const DefaultWebRoot = "/eos/user/{initial}/{user}/www"

// webMarker separates the local prefix from the web-relative part of a path.
const webMarker = "www/"

// ErrNotSyncable is returned for paths outside a www/ directory.
var ErrNotSyncable = errors.New("path is not below a www/ directory")

// RemoteTarget identifies the remote web area that receives synced files.
type RemoteTarget struct {
	User string `json:"user"`
	Host string `json:"host"`
	// Root is the web root template, see DefaultWebRoot.
	Root string `json:"root"`
}

// NewRemoteTarget creates a target with the default host and web root for
// empty values.
func NewRemoteTarget(user, host, root string) (RemoteTarget, error) {
	if host == "" {
		host = DefaultRemoteHost
	}
	if root == "" {
		root = DefaultWebRoot
	}
	t := RemoteTarget{User: user, Host: host, Root: root}
	if err := t.Validate(); err != nil {
		return RemoteTarget{}, err
	}
	return t, nil
}

// Validate checks that the target is usable.
func (t RemoteTarget) Validate() error {
	if t.User == "" {
		return fmt.Errorf("remote user is required")
	}
	if t.Host == "" {
		return fmt.Errorf("remote host is required")
	}
	if t.Root == "" {
		return fmt.Errorf("remote web root is required")
	}
	return nil
}

// Address returns user@host.
func (t RemoteTarget) Address() string {
	return t.User + "@" + t.Host
}

// WebRoot returns the expanded web root without a trailing slash.
func (t RemoteTarget) WebRoot() string {
	initial := ""
	if t.User != "" {
		initial = t.User[:1]
	}
	r := strings.NewReplacer("{initial}", initial, "{user}", t.User)
	return strings.TrimRight(r.Replace(t.Root), "/")
}

// Destination returns the rsync destination user@host:<webroot>/.
func (t RemoteTarget) Destination() string {
	return t.Address() + ":" + t.WebRoot() + "/"
}

// RsyncPath expands ~ and environment variables in p and rewrites "www/" to
// "www/./" so that rsync --relative keeps only the part below the web root.
func RsyncPath(p string) (string, error) {
	expanded := expandUser(os.ExpandEnv(p))
	if !strings.Contains(expanded, webMarker) {
		return "", fmt.Errorf("%w: %s", ErrNotSyncable, p)
	}
	return strings.ReplaceAll(expanded, webMarker, "www/./"), nil
}

// WebRelative returns the part of an rsync path below the web root, i.e.
// what follows the last "www/./" marker.
func WebRelative(rsyncPath string) (string, error) {
	idx := strings.LastIndex(rsyncPath, "www/./")
	if idx < 0 {
		return "", fmt.Errorf("%w: %s", ErrNotSyncable, rsyncPath)
	}
	rel := rsyncPath[idx+len("www/./"):]
	if rel == "" {
		return "", fmt.Errorf("%w: %s", ErrNotSyncable, rsyncPath)
	}
	return rel, nil
}

func expandUser(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// GifJob describes an animated gif built remotely from already synced images.
type GifJob struct {
	// Directory is the local directory holding the images, below a www/ directory.
	Directory string `json:"directory"`
	Pattern   string `json:"pattern"`
	Name      string `json:"name"`
	// Delay between frames in hundredths of a second.
	Delay int `json:"delay"`
}

// DefaultGifDelay is the frame delay used when none is given.
const DefaultGifDelay = 50

// RemoteDir maps the local directory onto the remote web area.
func (g GifJob) RemoteDir(t RemoteTarget) (string, error) {
	idx := strings.LastIndex(g.Directory, "/www/")
	if idx < 0 {
		return "", fmt.Errorf("%w: %s", ErrNotSyncable, g.Directory)
	}
	rel := g.Directory[idx+len("/www/"):]
	return path.Join(t.WebRoot(), rel), nil
}

// Command renders the ImageMagick command executed on the remote host.
func (g GifJob) Command(t RemoteTarget) (string, error) {
	dir, err := g.RemoteDir(t)
	if err != nil {
		return "", err
	}
	delay := g.Delay
	if delay <= 0 {
		delay = DefaultGifDelay
	}
	return fmt.Sprintf("convert -delay %d -loop 0 %s/%s %s/%s.gif", delay, dir, g.Pattern, dir, g.Name), nil
}

// SyncRequest is a batch of files to copy to the remote web area.
// It is serialised as JSON when handed to a sync worker.
type SyncRequest struct {
	ID string `json:"id"`
	// Files are rsync paths (see RsyncPath).
	Files []string `json:"files"`
	Gifs  []GifJob `json:"gifs,omitempty"`
	// ListFile is the local file holding Files, one per line.
	ListFile  string       `json:"listFile,omitempty"`
	Target    RemoteTarget `json:"target"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Validate checks that the request can be executed.
func (r SyncRequest) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("sync request id is required")
	}
	if len(r.Files) == 0 && len(r.Gifs) == 0 {
		return fmt.Errorf("sync request %s has nothing to do", r.ID)
	}
	return r.Target.Validate()
}

// SyncStatus is the outcome of executing a SyncRequest.
type SyncStatus string

const (
	SyncStatusSucceeded SyncStatus = "succeeded"
	SyncStatusPartial   SyncStatus = "partial"
	SyncStatusFailed    SyncStatus = "failed"
)

// SyncResult records what happened to a SyncRequest.
type SyncResult struct {
	RequestID   string
	Transferred int
	FailedGifs  []string
	Destination string
	Status      SyncStatus
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Duration returns how long the execution took.
func (r SyncResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
