package fs

import (
	"encoding/hex"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/fedragon/walltok/internal/models"

	"lukechampine.com/blake3"
)

const (
	GIF  = ".gif"
	JPG  = ".jpg"
	JPEG = ".jpeg"
	PNG  = ".png"
	WEBP = ".webp"
	MP4  = ".mp4"
	WEBM = ".webm"
	OGG  = ".ogg"
	MOV  = ".mov"
)

var (
	DefaultFileTypes = []string{GIF, JPG, JPEG, PNG, WEBP, MP4, WEBM, OGG, MOV}
	videoURLSuffixes = []string{MP4, WEBM, OGG}

	// not every platform's mime table knows video containers
	videoTypes = map[string]string{
		MP4:  "video/mp4",
		WEBM: "video/webm",
		OGG:  "video/ogg",
		MOV:  "video/quicktime",
	}
)

// Media is a local media file ready to be published.
type Media struct {
	Path        string
	Name        string
	ContentType string
	Data        []byte
	Err         error
}

func (m Media) Kind() models.MediaType {
	return KindFromContentType(m.ContentType)
}

// Hash is the hex blake3-256 digest of the content.
func (m Media) Hash() string {
	sum := blake3.Sum256(m.Data)
	return hex.EncodeToString(sum[:])
}

// KindFromURL treats locators ending in a known video extension as videos.
func KindFromURL(url string) models.MediaType {
	lower := strings.ToLower(url)
	for _, ext := range videoURLSuffixes {
		if strings.HasSuffix(lower, ext) {
			return models.Video
		}
	}

	return models.Image
}

func KindFromContentType(contentType string) models.MediaType {
	if strings.HasPrefix(contentType, "video") {
		return models.Video
	}

	return models.Image
}

func ContentType(name string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := videoTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}

	return http.DetectContentType(data)
}

func Read(path string) (Media, error) {
	f, err := os.Open(path)
	if err != nil {
		return Media{}, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return Media{}, err
	}

	return Media{
		Path:        path,
		Name:        filepath.Base(path),
		ContentType: ContentType(path, data),
		Data:        data,
	}, nil
}

// Walk emits the paths of every file under root whose extension is in fileTypes.
func Walk(root string, fileTypes []string) <-chan Media {
	media := make(chan Media)

	go func() {
		defer close(media)

		typesMap := make(map[string]bool, len(fileTypes))
		for _, t := range fileTypes {
			typesMap[strings.ToLower(t)] = true
		}

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if !d.IsDir() {
				ext := strings.ToLower(filepath.Ext(d.Name()))
				if typesMap[ext] {
					media <- Media{Path: path, Name: d.Name()}
				}
			}

			return nil
		})

		if err != nil {
			media <- Media{Err: err}
		}
	}()

	return media
}
