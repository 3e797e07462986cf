package storage

import (
	"bytes"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	pdfHeader = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")
)

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}

func TestSaveAttachment(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	st, err := l.Save(fileHeader(t, "Report.PDF", pdfHeader), TaskAttachments)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(st.Path, "task_attachments/"))
	assert.True(t, strings.HasSuffix(st.Path, ".pdf"))
	assert.Equal(t, "Report.PDF", st.OriginalName)
	assert.Equal(t, "application/pdf", st.ContentType)
	assert.Equal(t, int64(len(pdfHeader)), st.Size)

	data, err := os.ReadFile(filepath.Join(l.Root, filepath.FromSlash(st.Path)))
	require.NoError(t, err)
	assert.Equal(t, pdfHeader, data)
}

func TestSaveProfilePictureSniffsContent(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	st, err := l.Save(fileHeader(t, "me.png", pngHeader), ProfilePictures)
	require.NoError(t, err)
	assert.Equal(t, "image/png", st.ContentType)
	assert.True(t, strings.HasPrefix(st.Path, "profile_pics/"))

	_, err = l.Save(fileHeader(t, "fake.png", []byte("just text")), ProfilePictures)
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestSaveProfilePictureIgnoresClientExtension(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	polyglot := append(append([]byte{}, pngHeader...), []byte("<script>alert(1)</script>")...)
	st, err := l.Save(fileHeader(t, "avatar.html", polyglot), ProfilePictures)
	require.NoError(t, err)
	assert.Equal(t, "image/png", st.ContentType)
	assert.Equal(t, ".png", filepath.Ext(st.Path))
	assert.Equal(t, "avatar.html", st.OriginalName)
}

func TestSaveAttachmentExtension(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	st, err := l.Save(fileHeader(t, "scan", pdfHeader), TaskAttachments)
	require.NoError(t, err)
	assert.Equal(t, ".pdf", filepath.Ext(st.Path))

	st, err = l.Save(fileHeader(t, "page.html", pdfHeader), TaskAttachments)
	require.NoError(t, err)
	assert.Equal(t, ".pdf", filepath.Ext(st.Path))

	_, err = l.Save(fileHeader(t, "page.html", []byte("<html><script>alert(1)</script></html>")), TaskAttachments)
	assert.ErrorIs(t, err, ErrFileType)

	entries, err := os.ReadDir(filepath.Join(l.Root, string(TaskAttachments)))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSaveUniqueNames(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	a, err := l.Save(fileHeader(t, "a.pdf", pdfHeader), TaskAttachments)
	require.NoError(t, err)
	b, err := l.Save(fileHeader(t, "a.pdf", pdfHeader), TaskAttachments)
	require.NoError(t, err)
	assert.NotEqual(t, a.Path, b.Path)
}

func TestDelete(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	st, err := l.Save(fileHeader(t, "a.pdf", pdfHeader), TaskAttachments)
	require.NoError(t, err)

	require.NoError(t, l.Delete(st.Path, "task_attachments/missing.pdf"))
	_, err = os.Stat(filepath.Join(l.Root, filepath.FromSlash(st.Path)))
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, l.Delete("../outside.txt"))
}

func TestURL(t *testing.T) {
	assert.Equal(t, "/media/profile_pics/x.png", URL("profile_pics/x.png"))
	assert.Equal(t, "", URL(""))
}
