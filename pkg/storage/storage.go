package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"booth-camera/pkg/types"
	"booth-camera/pkg/utils"
)

var logger *zap.SugaredLogger

func init() {
	logger = utils.GetLogger().Named("storage")
}

var ErrInvalidName = errors.New("invalid file name")

// Store keeps captured stills and recordings under one directory.
type Store struct {
	fs    afero.Fs
	dir   string
	now   func() time.Time
	newID func() string
}

func New(fs afero.Fs, dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage path can not be empty")
	}
	s := &Store{fs: fs, dir: dir, now: time.Now, newID: uuid.NewString}
	for _, k := range []Kind{Images, Videos} {
		if err := fs.MkdirAll(s.kindDir(k), DefaultDirPerm); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) kindDir(k Kind) string {
	return filepath.Join(s.dir, string(k))
}

// NewName returns a fresh file name for kind.
func (s *Store) NewName(k Kind) string {
	return fmt.Sprintf("%s-%s%s", s.now().Format("20060102-150405"), s.newID(), k.ext())
}

// Path resolves name inside kind's directory. name must be a bare file name.
func (s *Store) Path(k Kind, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.kindDir(k), name), nil
}

// Save writes a still under a unique name and returns its path. An
// existing file is never overwritten.
func (s *Store) Save(data []byte) (string, error) {
	var err error
	for i := 0; i < saveAttempts; i++ {
		var p string
		if p, err = s.Path(Images, s.NewName(Images)); err != nil {
			return "", err
		}
		if err = s.create(p, data); err == nil {
			return p, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", err
		}
		logger.Warnf("capture name %s taken, picking another", filepath.Base(p))
	}

	return "", err
}

func (s *Store) create(p string, data []byte) error {
	f, err := s.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, DefaultFilePerm)
	if err != nil {
		return err
	}
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(p)
		return err
	}
	return f.Close()
}

// List returns the files of kind, newest first.
func (s *Store) List(k Kind) ([]types.File, error) {
	infos, err := afero.ReadDir(s.fs, s.kindDir(k))
	if err != nil {
		return nil, err
	}
	res := make([]types.File, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() || filepath.Ext(info.Name()) != k.ext() {
			continue
		}
		res = append(res, types.File{
			Name:    info.Name(),
			Size:    humanize.Bytes(uint64(info.Size())),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].ModTime.After(res[j].ModTime)
	})

	return res, nil
}

func (s *Store) Open(k Kind, name string) (afero.File, os.FileInfo, error) {
	p, err := s.Path(k, name)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.fs.Open(p)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}

	return f, info, nil
}

func (s *Store) ReadFile(k Kind, name string) ([]byte, error) {
	p, err := s.Path(k, name)
	if err != nil {
		return nil, err
	}
	return afero.ReadFile(s.fs, p)
}

func (s *Store) Remove(k Kind, name string) error {
	p, err := s.Path(k, name)
	if err != nil {
		return err
	}
	return s.fs.Remove(p)
}

// RemoveOlderThan deletes every file last modified before now-age and
// returns how many were removed.
func (s *Store) RemoveOlderThan(age time.Duration) (int, error) {
	deadline := s.now().Add(-age)
	var removed int
	for _, k := range []Kind{Images, Videos} {
		infos, err := afero.ReadDir(s.fs, s.kindDir(k))
		if err != nil {
			return removed, err
		}
		for _, info := range infos {
			if info.IsDir() || !info.ModTime().Before(deadline) {
				continue
			}
			if err = s.fs.Remove(filepath.Join(s.kindDir(k), info.Name())); err != nil {
				logger.Warnf("remove %s: %s", info.Name(), err)
				continue
			}
			removed++
		}
	}

	return removed, nil
}

type Usage struct {
	Files int    `json:"files"`
	Bytes uint64 `json:"bytes"`
	Size  string `json:"size"`
}

func (s *Store) Usage() (Usage, error) {
	var u Usage
	err := afero.Walk(s.fs, s.dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			u.Files++
			u.Bytes += uint64(info.Size())
		}
		return nil
	})
	u.Size = humanize.Bytes(u.Bytes)

	return u, err
}
