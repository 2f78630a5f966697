package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"net/textproto"
	"slices"
	"strings"
)

// MultipartBody is a multipart/form-data request body. The model sidecars
// take audio this way.
type MultipartBody struct {
	Fields map[string]string
	Files  []FileField
}

// FileField is one file part. Reader is read when Data is nil.
type FileField struct {
	FieldName   string
	FileName    string
	ContentType string // defaults to application/octet-stream
	Data        []byte
	Reader      io.Reader
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// encode renders the body and returns it with its Content-Type header.
// Fields are written in key order.
func (m *MultipartBody) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, k := range slices.Sorted(maps.Keys(m.Fields)) {
		if err := w.WriteField(k, m.Fields[k]); err != nil {
			return nil, "", err
		}
	}
	for _, f := range m.Files {
		if err := writeFilePart(w, f); err != nil {
			return nil, "", fmt.Errorf("multipart %s: %w", f.FieldName, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func writeFilePart(w *multipart.Writer, f FileField) error {
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(f.FieldName), quoteEscaper.Replace(f.FileName)))
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	var src io.Reader = bytes.NewReader(f.Data)
	if f.Data == nil && f.Reader != nil {
		src = f.Reader
	}
	_, err = io.Copy(part, src)
	return err
}
