package camera

import (
	"os"
	"time"
)

type Photo struct {
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	CapturedAt time.Time `json:"capturedAt"`
}

// PhotoWriter persists still image bytes under a unique name.
type PhotoWriter interface {
	Save(data []byte) (path string, err error)
}

// TempWriter writes stills into Dir (os.TempDir when empty).
type TempWriter struct {
	Dir string
}

func (w TempWriter) Save(data []byte) (string, error) {
	f, err := os.CreateTemp(w.Dir, "photo-*.jpg")
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err = f.Write(data); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}

	return f.Name(), nil
}
