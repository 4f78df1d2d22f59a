package entity

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewRemoteTarget(t *testing.T) {
	target, err := NewRemoteTarget("rschoefb", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.Host != DefaultRemoteHost {
		t.Errorf("Host = %s, expected %s", target.Host, DefaultRemoteHost)
	}
	if got := target.WebRoot(); got != "/eos/user/r/rschoefb/www" {
		t.Errorf("WebRoot() = %s", got)
	}
	if got := target.Destination(); got != "rschoefb@lxplus.cern.ch:/eos/user/r/rschoefb/www/" {
		t.Errorf("Destination() = %s", got)
	}

	if _, err := NewRemoteTarget("", "", ""); err == nil {
		t.Error("expected error for missing user")
	}
}

func TestRsyncPath(t *testing.T) {
	t.Setenv("PLOT_DIR", "/home/user/www/plots")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"plain", "/home/user/www/tmb/pt.png", "/home/user/www/./tmb/pt.png", false},
		{"env var", "$PLOT_DIR/eta.pdf", "/home/user/www/./plots/eta.pdf", false},
		{"home", "~/www/a.png", filepath.Join(home, "www") + "/./a.png", false},
		{"outside www", "/tmp/pt.png", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RsyncPath(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrNotSyncable) {
					t.Errorf("expected ErrNotSyncable, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("RsyncPath(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestWebRelative(t *testing.T) {
	rel, err := WebRelative("/home/user/www/./tmb/pt.png")
	if err != nil || rel != "tmb/pt.png" {
		t.Errorf("WebRelative() = %q, %v", rel, err)
	}
	if _, err := WebRelative("/home/user/www/tmb/pt.png"); err == nil {
		t.Error("expected error without www/./ marker")
	}
	if _, err := WebRelative("/home/user/www/./"); err == nil {
		t.Error("expected error for empty relative part")
	}
}

func TestGifJob_Command(t *testing.T) {
	target, _ := NewRemoteTarget("rschoefb", "", "")

	job := GifJob{Directory: "/home/user/www/tmb/scan", Pattern: "*.png", Name: "scan"}
	cmd, err := job.Command(target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "convert -delay 50 -loop 0 /eos/user/r/rschoefb/www/tmb/scan/*.png /eos/user/r/rschoefb/www/tmb/scan/scan.gif"
	if cmd != expected {
		t.Errorf("Command() = %q\nexpected    %q", cmd, expected)
	}

	job.Delay = 20
	cmd, _ = job.Command(target)
	if cmd[:len("convert -delay 20")] != "convert -delay 20" {
		t.Errorf("expected custom delay, got %q", cmd)
	}

	if _, err := (GifJob{Directory: "/tmp/scan"}).Command(target); !errors.Is(err, ErrNotSyncable) {
		t.Errorf("expected ErrNotSyncable, got %v", err)
	}
}

func TestSyncRequest_Validate(t *testing.T) {
	target, _ := NewRemoteTarget("rschoefb", "", "")

	valid := SyncRequest{ID: "abc", Files: []string{"/x/www/./a.png"}, Target: target}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := (SyncRequest{Files: valid.Files, Target: target}).Validate(); err == nil {
		t.Error("expected error for missing id")
	}
	if err := (SyncRequest{ID: "abc", Target: target}).Validate(); err == nil {
		t.Error("expected error for empty request")
	}
	if err := (SyncRequest{ID: "abc", Files: valid.Files}).Validate(); err == nil {
		t.Error("expected error for missing target")
	}
}

func TestSyncRequest_JSON(t *testing.T) {
	target, _ := NewRemoteTarget("rschoefb", "", "")
	req := SyncRequest{
		ID:        "abc",
		Files:     []string{"/x/www/./a.png"},
		Gifs:      []GifJob{{Directory: "/x/www/scan", Pattern: "*.png", Name: "scan", Delay: 10}},
		Target:    target,
		CreatedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded SyncRequest
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ID != req.ID || decoded.Target != req.Target || len(decoded.Gifs) != 1 || !decoded.CreatedAt.Equal(req.CreatedAt) {
		t.Errorf("decoded request differs: %+v", decoded)
	}
}

func TestSyncResult_Duration(t *testing.T) {
	start := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	r := SyncResult{StartedAt: start, FinishedAt: start.Add(3 * time.Second)}
	if r.Duration() != 3*time.Second {
		t.Errorf("Duration() = %v", r.Duration())
	}
}
