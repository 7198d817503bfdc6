// Package config loads the kiosk configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/vladimirvivien/go4vl/v4l2"

	"booth-camera/pkg/types"
)

// Duration is a time.Duration written as "8s" or "24h" in JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"8s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)

	return nil
}

func (d Duration) D() time.Duration {
	return time.Duration(d)
}

type Camera struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	FPS    int `json:"fps"`
	// Controls maps V4L2 control ids to values applied on every session.
	Controls map[v4l2.CtrlID]v4l2.CtrlValue `json:"controls,omitempty"`
	// Orientation is the UI orientation assumed until the UI reports one.
	Orientation string   `json:"orientation"`
	Settle      Duration `json:"hotplugSettle"`
}

func (c Camera) Settings() types.CameraSettings {
	return types.CameraSettings(c.Controls)
}

type Storage struct {
	Dir           string   `json:"dir"`
	MaxAge        Duration `json:"maxAge"`
	SweepInterval Duration `json:"sweepInterval"`
}

type Config struct {
	Port       int                    `json:"port"`
	WebdavPort int                    `json:"webdavPort"`
	Statics    string                 `json:"statics"`
	LogLevel   string                 `json:"logLevel"`
	NTPServer  string                 `json:"ntpServer"`
	NTPEvery   Duration               `json:"ntpInterval"`
	Camera     Camera                 `json:"camera"`
	Storage    Storage                `json:"storage"`
	Recording  types.RecordingSetting `json:"recording"`
}

func Default() Config {
	return Config{
		Port:       9999,
		WebdavPort: 9998,
		Statics:    "./statics",
		LogLevel:   "info",
		NTPServer:  "pool.ntp.org",
		NTPEvery:   Duration(time.Hour),
		Camera: Camera{
			Width:       1280,
			Height:      720,
			FPS:         30,
			Orientation: "landscapeLeft",
			Settle:      Duration(500 * time.Millisecond),
		},
		Storage: Storage{
			Dir:           "./captures",
			MaxAge:        Duration(7 * 24 * time.Hour),
			SweepInterval: Duration(time.Hour),
		},
		Recording: types.RecordingSetting{FPS: 10, MaxFrames: 300},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err = json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Camera.Settle < 0 {
		return fmt.Errorf("hotplugSettle can not be negative")
	}
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage dir can not be empty")
	}

	return nil
}
