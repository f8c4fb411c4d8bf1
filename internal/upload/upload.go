// internal/upload/upload.go
// Package upload turns a local file into input text through the backend.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mwiater/medgen/internal/api"
	"github.com/mwiater/medgen/internal/logging"
)

// FailedMessage is shown when an upload fails without a server detail.
const FailedMessage = "file upload failed"

// Uploader sends file content to the backend.
type Uploader interface {
	Upload(ctx context.Context, filename string, content io.Reader) (string, error)
}

// Adapter checks files locally and submits them for text extraction.
type Adapter struct {
	uploader   Uploader
	extensions []string
}

// New returns an Adapter accepting the given extensions (".txt" form).
func New(uploader Uploader, extensions []string) *Adapter {
	return &Adapter{uploader: uploader, extensions: extensions}
}

// Extensions returns the accepted extensions.
func (a *Adapter) Extensions() []string {
	return slices.Clone(a.extensions)
}

// Allowed reports whether path has an accepted extension.
func (a *Adapter) Allowed(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext != "" && slices.Contains(a.extensions, ext)
}

// Submit uploads the file at path and returns its text. The returned error's
// message is fit for the error slot.
func (a *Adapter) Submit(ctx context.Context, path string) (string, error) {
	if !a.Allowed(path) {
		return "", fmt.Errorf("unsupported file type; allowed: %s", strings.Join(a.extensions, ", "))
	}

	f, err := os.Open(path)
	if err != nil {
		logging.LogEvent("upload: open %s: %v", path, err)
		return "", errors.New(FailedMessage)
	}
	defer f.Close()

	text, err := a.uploader.Upload(ctx, filepath.Base(path), f)
	if err != nil {
		logging.LogEvent("upload: %s: %v", path, err)
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Detail != "" {
			return "", errors.New(apiErr.Detail)
		}
		return "", errors.New(FailedMessage)
	}
	logging.LogEvent("upload: %s extracted %d bytes", path, len(text))
	return text, nil
}

// PathFromPaste interprets pasted text as a dropped file. Terminals deliver a
// drop as the file's path, possibly quoted, shell-escaped or as a file URL.
// It returns false unless the text names an existing regular file.
func PathFromPaste(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if s == "" || strings.ContainsAny(s, "\n\r") {
		return "", false
	}

	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
	}
	if strings.HasPrefix(s, "file://") {
		u, err := url.Parse(s)
		if err != nil {
			return "", false
		}
		s = u.Path
	} else {
		s = unescapeShell(s)
	}

	info, err := os.Stat(s)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return s, true
}

// unescapeShell drops the backslashes terminals insert before spaces and
// other special characters.
func unescapeShell(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}
