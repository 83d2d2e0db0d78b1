package objectstore

import (
	"bufio"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// Upload is a sniffed multipart file ready to Put.
type Upload struct {
	Reader      io.Reader
	Filename    string
	Size        int64
	ContentType string
}

// ReadUpload pulls field from a parsed multipart request and sniffs its
// content type from the first 512 bytes.
func ReadUpload(r *http.Request, field string, maxBytes int64) (*Upload, func(), error) {
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, nil, fmt.Errorf("parse multipart form: %w", err)
	}
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return nil, nil, fmt.Errorf("missing %q file: %w", field, err)
	}
	if hdr.Size > maxBytes {
		f.Close()
		return nil, nil, fmt.Errorf("file exceeds %d bytes", maxBytes)
	}
	up, err := sniff(f, hdr)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return up, func() { f.Close() }, nil
}

func sniff(f multipart.File, hdr *multipart.FileHeader) (*Upload, error) {
	br := bufio.NewReaderSize(f, 512)
	head, err := br.Peek(512)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return &Upload{
		Reader:      br,
		Filename:    hdr.Filename,
		Size:        hdr.Size,
		ContentType: http.DetectContentType(head),
	}, nil
}

// IsImage reports whether the sniffed type is an image.
func (u *Upload) IsImage() bool {
	return strings.HasPrefix(u.ContentType, "image/")
}
