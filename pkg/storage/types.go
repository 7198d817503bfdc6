package storage

const (
	DefaultImagesDir = "images"
	DefaultVideosDir = "videos"

	DefaultImageExt = ".jpg"
	DefaultVideoExt = ".avi"

	DefaultFilePerm = 0660
	DefaultDirPerm  = 0750

	saveAttempts = 3
)

type Kind string

const (
	Images Kind = DefaultImagesDir
	Videos Kind = DefaultVideosDir
)

func (k Kind) ext() string {
	if k == Videos {
		return DefaultVideoExt
	}
	return DefaultImageExt
}
