// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package attach

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF for DecodeConfig
	_ "image/jpeg" // register JPEG for DecodeConfig
	_ "image/png"  // register PNG for DecodeConfig
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jeranaias/chatdesk/internal/model"
)

// MaxFileSize bounds a single attachment (20 MiB).
const MaxFileSize = 20 << 20

// sniffLen is the number of bytes http.DetectContentType looks at.
const sniffLen = 512

// =============================================================================
// ATTACHMENT
// =============================================================================

// Attachment is one ingested file.
type Attachment struct {
	ID       string
	Name     string
	Path     string
	MIMEType string
	Kind     model.Kind
	Size     int64

	preview *Preview
}

// Ref returns the metadata stored with a message.
func (a *Attachment) Ref() model.AttachmentRef {
	return model.AttachmentRef{
		ID:       a.ID,
		Name:     a.Name,
		Path:     a.Path,
		MIMEType: a.MIMEType,
		Kind:     a.Kind,
		Size:     a.Size,
	}
}

// Preview returns the image preview, or nil for non-images and after release.
func (a *Attachment) Preview() *Preview {
	if a.preview == nil || a.preview.Released() {
		return nil
	}
	return a.preview
}

// Open opens the underlying file.
func (a *Attachment) Open() (io.ReadCloser, error) {
	return os.Open(a.Path)
}

// Data returns the file contents, served from the preview when one is held.
func (a *Attachment) Data() ([]byte, error) {
	if p := a.Preview(); p != nil {
		if data := p.Data(); data != nil {
			return data, nil
		}
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, fmt.Errorf("read attachment %s: %w", a.Name, err)
	}
	return data, nil
}

// release frees the preview. Safe to call any number of times.
func (a *Attachment) release() {
	if a.preview != nil {
		a.preview.Release()
	}
}

// =============================================================================
// PREVIEW
// =============================================================================

// Preview holds an image's bytes and dimensions for display.
type Preview struct {
	Width  int
	Height int

	mu       sync.Mutex
	data     []byte
	once     sync.Once
	released bool
	onFree   func()
}

// Data returns the image bytes, or nil once released.
func (p *Preview) Data() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data
}

// Released reports whether Release has run.
func (p *Preview) Released() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

// Release frees the preview. Only the first call has an effect.
func (p *Preview) Release() {
	p.once.Do(func() {
		p.mu.Lock()
		p.data = nil
		p.released = true
		onFree := p.onFree
		p.mu.Unlock()
		if onFree != nil {
			onFree()
		}
	})
}

// Dimensions returns "WxH", or "" when the size is unknown.
func (p *Preview) Dimensions() string {
	if p.Width == 0 || p.Height == 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

// =============================================================================
// INGESTION
// =============================================================================

// load reads path and builds an Attachment. onFree, when set, is invoked
// when an image preview is released.
func load(path string, onFree func(id string)) (*Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%s is larger than %d MiB", path, MaxFileSize>>20)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	head = head[:n]

	mediaType := DetectMIME(path, head)
	a := &Attachment{
		ID:       uuid.NewString(),
		Name:     filepath.Base(path),
		Path:     path,
		MIMEType: mediaType,
		Kind:     model.ClassifyMIME(mediaType),
		Size:     info.Size(),
	}

	if a.Kind == model.KindImage {
		rest, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		data := append(head, rest...)
		p := &Preview{data: data}
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			p.Width, p.Height = cfg.Width, cfg.Height
		}
		if onFree != nil {
			id := a.ID
			p.onFree = func() { onFree(id) }
		}
		a.preview = p
	}
	return a, nil
}

// DetectMIME names the media type of a file from its extension, falling
// back to sniffing its first bytes.
func DetectMIME(path string, head []byte) string {
	if ext := strings.ToLower(filepath.Ext(path)); ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			if mediaType, _, err := mime.ParseMediaType(t); err == nil {
				return mediaType
			}
			return t
		}
	}
	if len(head) == 0 {
		return "application/octet-stream"
	}
	t := http.DetectContentType(head)
	if mediaType, _, err := mime.ParseMediaType(t); err == nil {
		return mediaType
	}
	return t
}
