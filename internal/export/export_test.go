// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatdesk/internal/model"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func testOptions(dir string) *Options {
	return &Options{
		OutputDir:         dir,
		IncludeMetadata:   true,
		IncludeTimestamps: true,
		Now:               func() time.Time { return fixedNow },
	}
}

func sampleConversation() *model.Conversation {
	created := fixedNow.Add(-time.Hour)
	return &model.Conversation{
		ID:        "c1",
		Title:     "Sorting in Python",
		Model:     "gpt-5",
		CreatedAt: created,
		UpdatedAt: created.Add(2 * time.Minute),
		Messages: []model.Message{
			{
				ID: "m1", Role: model.RoleUser, Content: "How do I sort a list?",
				CreatedAt: created,
				Attachments: []model.AttachmentRef{
					{ID: "a1", Name: "data.csv", MIMEType: "text/csv", Kind: model.KindDocument, Size: 2048},
				},
			},
			{
				ID: "m2", Role: model.RoleAssistant, Content: "Use `sorted(xs)`.",
				CreatedAt: created.Add(time.Minute),
			},
		},
	}
}

func TestNew(t *testing.T) {
	for _, format := range []string{"md", "markdown", ".MD"} {
		exp, err := New(format, nil)
		require.NoError(t, err, format)
		assert.Equal(t, ".md", exp.FileExtension())
	}

	exp, err := New("json", nil)
	require.NoError(t, err)
	assert.Equal(t, "application/json", exp.MimeType())

	_, err = New("pdf", nil)
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestMarkdownExport(t *testing.T) {
	out, err := NewMarkdownExporter(testOptions("")).Export(sampleConversation())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "---\ntitle: Sorting in Python\nmodel: gpt-5\n"))
	assert.Contains(t, md, "messages: 2\n")
	assert.Contains(t, md, "# Sorting in Python\n")
	assert.Contains(t, md, "### You <sub>08:26:53</sub>")
	assert.Contains(t, md, "### Assistant <sub>08:27:53</sub>")
	assert.Contains(t, md, "Use `sorted(xs)`.")
	assert.Contains(t, md, "- `data.csv` (text/csv, 2.0 KB)")

	if strings.Index(md, "### You") > strings.Index(md, "### Assistant") {
		t.Errorf("messages out of order:\n%s", md)
	}
}

func TestMarkdownExportWithoutMetadata(t *testing.T) {
	opts := testOptions("")
	opts.IncludeMetadata = false
	opts.IncludeTimestamps = false

	out, err := NewMarkdownExporter(opts).Export(sampleConversation())
	require.NoError(t, err)
	md := string(out)

	assert.False(t, strings.HasPrefix(md, "---"))
	assert.NotContains(t, md, "Session Information")
	assert.Contains(t, md, "### You\n")
}

func TestMarkdownRejectsEmptyConversation(t *testing.T) {
	exp := NewMarkdownExporter(nil)

	_, err := exp.Export(nil)
	assert.ErrorIs(t, err, ErrNilConversation)

	conv := sampleConversation()
	conv.Messages = nil
	_, err = exp.Export(conv)
	assert.Error(t, err)

	conv = sampleConversation()
	conv.CreatedAt = time.Time{}
	_, err = exp.Export(conv)
	assert.Error(t, err)
}

// A title with a newline must not inject extra front matter keys.
func TestMarkdownFrontMatterInjection(t *testing.T) {
	conv := sampleConversation()
	conv.Title = "Innocent\nmodel: evil"

	out, err := NewMarkdownExporter(testOptions("")).Export(conv)
	require.NoError(t, err)

	front := strings.SplitN(string(out), "---\n", 3)[1]
	assert.Contains(t, front, `title: "Innocent\nmodel: evil"`)
	assert.Equal(t, 1, strings.Count(front, "\nmodel: "))
}

func TestEscapeYAML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a: b", `"a: b"`},
		{`C:\path`, `"C:\\path"`},
		{`say "hi"`, `"say \"hi\""`},
		{" padded", `" padded"`},
		{"line\r\nbreak", `"line\r\nbreak"`},
	}
	for _, tt := range tests {
		if got := escapeYAML(tt.in); got != tt.want {
			t.Errorf("escapeYAML(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestJSONExport(t *testing.T) {
	conv := sampleConversation()
	out, err := NewJSONExporter(testOptions("")).Export(conv)
	require.NoError(t, err)

	var doc document
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, "chatdesk", doc.Generator)
	assert.True(t, doc.ExportedAt.Equal(fixedNow))
	assert.Equal(t, conv.ID, doc.Conversation.ID)
	require.Len(t, doc.Conversation.Messages, 2)
	assert.Equal(t, "data.csv", doc.Conversation.Messages[0].Attachments[0].Name)
}

func TestJSONExportBare(t *testing.T) {
	opts := testOptions("")
	opts.IncludeMetadata = false

	out, err := NewJSONExporter(opts).Export(sampleConversation())
	require.NoError(t, err)

	var conv model.Conversation
	require.NoError(t, json.Unmarshal(out, &conv))
	assert.Equal(t, "Sorting in Python", conv.Title)

	_, err = NewJSONExporter(opts).Export(nil)
	assert.ErrorIs(t, err, ErrNilConversation)
}

func TestExportToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	opts := testOptions(dir)

	path, err := ExportMarkdown(sampleConversation(), opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "conversation_Sorting_in_Python_20250314_092653.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Sorting in Python")

	path, err = ExportToFile(sampleConversation(), NewJSONExporter(opts), opts)
	require.NoError(t, err)
	assert.Equal(t, ".json", filepath.Ext(path))

	_, err = ExportToFile(nil, NewJSONExporter(opts), opts)
	assert.ErrorIs(t, err, ErrNilConversation)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "conversation"},
		{"hello world", "hello_world"},
		{`a/b\c:d*e?f"g<h>i|j`, "a-b-c-d-e-f-g-h-i-j"},
		{"tab\there", "tab_here"},
		{"ctrl\x01char", "ctrl-char"},
		{"Long title…", "Long_title"},
		{strings.Repeat("é", 60), strings.Repeat("é", 50)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "3.0 MB", formatSize(3*1024*1024))
}
