// Package storage writes uploaded files under the media root, one
// directory per kind of owner record.
package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

type Kind string

const (
	TaskAttachments Kind = "task_attachments"
	ProfilePictures Kind = "profile_pics"
)

// MaxUploadSize caps a single file.
const MaxUploadSize = 10 << 20

var (
	ErrTooLarge = errors.New("File size exceeds the limit of 10MB.")
	ErrNotImage = errors.New("Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	ErrFileType = errors.New("Invalid file type. Allowed types: JPG, PNG, PDF.")
)

var imageTypes = map[string]bool{"image/jpeg": true, "image/png": true}

// Stored files are served by extension, so only these may reach disk.
var attachmentExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".pdf": true}

// Stored describes a saved file. Path is relative to the media root and
// uses forward slashes, so it can be stored and served as is.
type Stored struct {
	Path         string
	OriginalName string
	ContentType  string
	Size         int64
}

type Local struct {
	Root string
}

func NewLocal(root string) (*Local, error) {
	for _, k := range []Kind{TaskAttachments, ProfilePictures} {
		if err := os.MkdirAll(filepath.Join(root, string(k)), 0755); err != nil {
			return nil, fmt.Errorf("create media dir: %w", err)
		}
	}
	return &Local{Root: root}, nil
}

// Save copies the upload under a fresh name and records the sniffed
// content type. Profile pictures must sniff as JPEG or PNG.
func (l *Local) Save(fh *multipart.FileHeader, kind Kind) (*Stored, error) {
	if fh.Size > MaxUploadSize {
		return nil, ErrTooLarge
	}
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	mt, err := mimetype.DetectReader(src)
	if err != nil {
		return nil, fmt.Errorf("detect content type: %w", err)
	}
	contentType := mt.String()
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	if kind == ProfilePictures && !imageTypes[contentType] {
		return nil, ErrNotImage
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload: %w", err)
	}

	ext, err := extension(fh.Filename, mt, kind)
	if err != nil {
		return nil, err
	}
	rel := path.Join(string(kind), uuid.NewString()+ext)

	dst, err := os.OpenFile(filepath.Join(l.Root, filepath.FromSlash(rel)), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst.Name())
		return nil, fmt.Errorf("write file: %w", err)
	}

	return &Stored{
		Path:         rel,
		OriginalName: filepath.Base(fh.Filename),
		ContentType:  contentType,
		Size:         n,
	}, nil
}

// extension picks the suffix of the stored file. Profile pictures always
// take the sniffed one; attachments keep the client's when it is whitelisted.
func extension(filename string, mt *mimetype.MIME, kind Kind) (string, error) {
	if kind == ProfilePictures {
		return mt.Extension(), nil
	}
	if ext := strings.ToLower(filepath.Ext(filename)); attachmentExts[ext] {
		return ext, nil
	}
	if ext := mt.Extension(); attachmentExts[ext] {
		return ext, nil
	}
	return "", ErrFileType
}

// Delete removes stored files. Missing files are ignored and paths that
// would leave the media root are refused.
func (l *Local) Delete(rels ...string) error {
	var errs []error
	for _, rel := range rels {
		clean := path.Clean("/" + rel)[1:]
		if clean == "" || clean != rel {
			errs = append(errs, fmt.Errorf("refusing to delete %q", rel))
			continue
		}
		err := os.Remove(filepath.Join(l.Root, filepath.FromSlash(clean)))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// URL is where the media route serves a stored path.
func URL(rel string) string {
	if rel == "" {
		return ""
	}
	return "/media/" + rel
}
