package lyrics

import (
	"bufio"
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"ChordScroll/model"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultSong []byte

// ErrUnsupportedFormat 不支持的歌谱文件扩展名
var ErrUnsupportedFormat = errors.New("unsupported transcript format")

// document YAML 歌谱文件结构
type document struct {
	Title string       `yaml:"title"`
	Lines []model.Line `yaml:"lines"`
}

// Default 返回内置的演示歌谱
func Default() *model.Transcript {
	t, err := ParseYAML(defaultSong)
	if err != nil {
		panic(fmt.Sprintf("embedded transcript is invalid: %v", err))
	}
	return t
}

// LoadFile reads a transcript from disk; the format is chosen by extension.
func LoadFile(path string) (*model.Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript %s: %w", path, err)
	}

	var t *model.Transcript
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		t, err = ParseYAML(data)
	case ".txt", ".chords":
		t, err = ParseText(data)
	case ".lrc":
		t, err = ParseLRC(data)
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("parse transcript %s: %w", path, err)
	}
	return t, nil
}

// ParseYAML 解析 YAML 歌谱；顶层 title 在没有标题行时作为第一行插入
func ParseYAML(data []byte) (*model.Transcript, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	lines := doc.Lines
	if title := strings.TrimSpace(doc.Title); title != "" && !hasTitle(lines) {
		lines = append([]model.Line{{Kind: model.LineKindTitle, Text: title}}, lines...)
	}
	return model.NewTranscript(lines)
}

func hasTitle(lines []model.Line) bool {
	for _, l := range lines {
		if l.Kind == model.LineKindTitle {
			return true
		}
	}
	return false
}

var chordToken = regexp.MustCompile(`^[A-G][#b]?(m|maj|min|dim|aug|sus|add)?[0-9]*(/[A-G][#b]?)?$`)

// isChordLine reports whether every token on the line is a chord symbol.
func isChordLine(s string) bool {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if !chordToken.MatchString(strings.Trim(f, "[]")) {
			return false
		}
	}
	return true
}

// ParseText parses a plain chord sheet:
//
//	# Title
//	Am  F
//	lyric text
//
// Blank lines are skipped.
func ParseText(data []byte) (*model.Transcript, error) {
	var lines []model.Line
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		switch {
		case raw == "":
			continue
		case strings.HasPrefix(raw, "#"):
			lines = append(lines, model.Line{Kind: model.LineKindTitle, Text: strings.TrimSpace(strings.TrimLeft(raw, "#"))})
		case isChordLine(raw):
			lines = append(lines, model.Line{Kind: model.LineKindChord, Text: raw})
		default:
			lines = append(lines, model.Line{Kind: model.LineKindLyric, Text: raw})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return model.NewTranscript(lines)
}

var (
	lrcTimeTag = regexp.MustCompile(`^\[\d+:\d+(?:[.:]\d+)?\]`)
	lrcMetaTag = regexp.MustCompile(`^\[([A-Za-z]+):(.*)\]$`)
)

// ParseLRC 解析 LRC 歌词。时间标签被丢弃，高亮只由节拍推进；
// [ti:...] 作为标题，其余元数据标签忽略
func ParseLRC(data []byte) (*model.Transcript, error) {
	var (
		title string
		lines []model.Line
	)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if m := lrcMetaTag.FindStringSubmatch(raw); m != nil && !lrcTimeTag.MatchString(raw) {
			if strings.EqualFold(m[1], "ti") {
				title = strings.TrimSpace(m[2])
			}
			continue
		}
		for lrcTimeTag.MatchString(raw) {
			raw = strings.TrimSpace(lrcTimeTag.ReplaceAllString(raw, ""))
		}
		if raw == "" {
			continue
		}
		lines = append(lines, model.Line{Kind: model.LineKindLyric, Text: raw})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if title != "" {
		lines = append([]model.Line{{Kind: model.LineKindTitle, Text: title}}, lines...)
	}
	return model.NewTranscript(lines)
}
