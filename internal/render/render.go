// Package render turns raw model output into deliverable messages and files.
package render

import (
	"fmt"
	"strings"
)

const (
	// ChunkLimit keeps each message under Discord's 2000-character ceiling
	// with headroom for mentions and markdown added around the text.
	ChunkLimit = 1900

	fenceMarker      = "```"
	fileBase         = "codigo"
	FallbackFilename = "resposta.txt"

	codeNotice     = "📎 Código em anexo:"
	longTextNotice = "📄 A resposta ficou longa, segue em anexo:"
)

// File is a rendered attachment.
type File struct {
	Name    string
	Content []byte
}

// Output is the delivery plan for one model reply. Messages are sent in
// order; Files accompany the final message.
type Output struct {
	Messages []string
	Files    []File
}

type segment struct {
	tag  string
	body string
}

// Render parses raw model output, separates prose from fenced code segments,
// and decides how to package the result under the transport limit.
func Render(raw string) Output {
	segments, residual := extractFences(raw)
	explanation := strings.TrimSpace(residual)

	if len(segments) > 0 {
		files := buildFiles(segments)
		if explanation == "" {
			return Output{Messages: []string{codeNotice}, Files: files}
		}
		return Output{Messages: chunkText(explanation, ChunkLimit), Files: files}
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Output{}
	}
	if len(trimmed) > ChunkLimit {
		// Free-form prose is not chunked in this path; one file keeps the
		// reply whole and readable.
		return Output{
			Messages: []string{longTextNotice},
			Files:    []File{{Name: FallbackFilename, Content: []byte(trimmed)}},
		}
	}
	return Output{Messages: []string{trimmed}}
}

// extractFences scans for triple-backtick segments left to right, first close
// wins. An unterminated fence degrades to plain prose.
func extractFences(raw string) ([]segment, string) {
	var segments []segment
	var residual strings.Builder

	idx := 0
	for {
		open := strings.Index(raw[idx:], fenceMarker)
		if open < 0 {
			residual.WriteString(raw[idx:])
			break
		}
		open += idx

		rest := raw[open+len(fenceMarker):]
		end := strings.Index(rest, fenceMarker)
		if end < 0 {
			residual.WriteString(raw[idx:])
			break
		}

		residual.WriteString(raw[idx:open])
		tag, body := splitTag(rest[:end])
		segments = append(segments, segment{tag: tag, body: strings.TrimSpace(body)})
		idx = open + len(fenceMarker) + end + len(fenceMarker)
	}

	return segments, residual.String()
}

// splitTag separates the optional language tag line from the segment body.
func splitTag(inner string) (tag, body string) {
	nl := strings.IndexByte(inner, '\n')
	if nl < 0 {
		return "txt", inner
	}
	candidate := strings.TrimSpace(inner[:nl])
	if candidate == "" || !isLanguageTag(candidate) {
		return "txt", inner
	}
	return strings.ToLower(candidate), inner[nl+1:]
}

func isLanguageTag(s string) bool {
	if len(s) > 20 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '+' || r == '#' || r == '.' || r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

var tagExtensions = map[string]string{
	"python":     "py",
	"py":         "py",
	"javascript": "js",
	"js":         "js",
	"typescript": "ts",
	"ts":         "ts",
	"go":         "go",
	"golang":     "go",
	"rust":       "rs",
	"c":          "c",
	"cpp":        "cpp",
	"c++":        "cpp",
	"java":       "java",
	"csharp":     "cs",
	"cs":         "cs",
	"html":       "html",
	"css":        "css",
	"json":       "json",
	"yaml":       "yml",
	"yml":        "yml",
	"sql":        "sql",
	"sh":         "sh",
	"bash":       "sh",
	"shell":      "sh",
	"php":        "php",
	"ruby":       "rb",
	"rb":         "rb",
	"kotlin":     "kt",
	"swift":      "swift",
	"txt":        "txt",
}

// buildFiles assigns deterministic filenames in extraction order. Segments
// sharing an extension get a 1-based counter, first instance unsuffixed.
// Empty bodies still produce files so file count matches fence count.
func buildFiles(segments []segment) []File {
	counts := make(map[string]int)
	files := make([]File, 0, len(segments))
	for _, seg := range segments {
		ext, ok := tagExtensions[seg.tag]
		if !ok {
			ext = "txt"
		}
		counts[ext]++
		name := fmt.Sprintf("%s.%s", fileBase, ext)
		if counts[ext] > 1 {
			name = fmt.Sprintf("%s_%d.%s", fileBase, counts[ext], ext)
		}
		files = append(files, File{Name: name, Content: []byte(seg.body)})
	}
	return files
}

// chunkText splits text at newline boundaries under a byte limit; a single
// oversized line is split at rune boundaries.
func chunkText(text string, limit int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if limit <= 0 || len(trimmed) <= limit {
		return []string{trimmed}
	}

	lines := strings.Split(trimmed, "\n")
	chunks := make([]string, 0)
	buf := make([]string, 0, len(lines))
	bufLen := 0
	for _, line := range lines {
		sepLen := 0
		if len(buf) > 0 {
			sepLen = 1
		}
		if bufLen+sepLen+len(line) <= limit {
			buf = append(buf, line)
			bufLen += sepLen + len(line)
			continue
		}
		if len(buf) > 0 {
			chunks = append(chunks, strings.Join(buf, "\n"))
			buf = buf[:0]
			bufLen = 0
		}
		if len(line) <= limit {
			buf = append(buf, line)
			bufLen = len(line)
			continue
		}
		chunks = append(chunks, splitLongLine(line, limit)...)
	}
	if len(buf) > 0 {
		chunks = append(chunks, strings.Join(buf, "\n"))
	}
	return chunks
}

func splitLongLine(line string, limit int) []string {
	chunks := make([]string, 0)
	var b strings.Builder
	for _, r := range line {
		if b.Len()+len(string(r)) > limit {
			segment := strings.TrimSpace(b.String())
			if segment != "" {
				chunks = append(chunks, segment)
			}
			b.Reset()
		}
		b.WriteRune(r)
	}
	if segment := strings.TrimSpace(b.String()); segment != "" {
		chunks = append(chunks, segment)
	}
	return chunks
}
