package models

import (
	"encoding/json"
	"strings"
)

// BodyKind names the variant of a message body.
type BodyKind string

const (
	BodyText  BodyKind = "text"
	BodyImage BodyKind = "image"
	BodyFile  BodyKind = "file"
)

// FileType is the attachment type of a FileBody.
type FileType string

const (
	FilePDF   FileType = "pdf"
	FileVideo FileType = "video"
)

// Body is a message payload. The variant is decided once, by ParseBody or by
// constructing one of TextBody, ImageBody or FileBody directly.
type Body interface {
	Kind() BodyKind
	// Encode returns the single string persisted in the messages.text column.
	Encode() string
	sealed()
}

// TextBody is a plain text message.
type TextBody struct {
	Text string
}

func (TextBody) Kind() BodyKind   { return BodyText }
func (b TextBody) Encode() string { return b.Text }
func (TextBody) sealed()          {}

// ImageBody references an image, either as a data URL or a remote URL.
type ImageBody struct {
	Ref string
}

func (ImageBody) Kind() BodyKind   { return BodyImage }
func (b ImageBody) Encode() string { return b.Ref }
func (ImageBody) sealed()          {}

// FileBody is a pdf or video attachment.
type FileBody struct {
	Type FileType
	Name string
	Data string
	Size int64
}

// fileWire keeps "type" first so stored payloads start with {"type":"pdf" or
// {"type":"video", which is what older clients sniff for.
type fileWire struct {
	Type FileType `json:"type"`
	Name string   `json:"name"`
	Data string   `json:"data"`
	Size int64    `json:"size"`
}

func (FileBody) Kind() BodyKind { return BodyFile }

func (b FileBody) Encode() string {
	data, err := json.Marshal(fileWire{Type: b.Type, Name: b.Name, Data: b.Data, Size: b.Size})
	if err != nil {
		return ""
	}
	return string(data)
}

func (FileBody) sealed() {}

// ParseBody decides the body variant of a stored or received text column.
func ParseBody(raw string) Body {
	switch {
	case strings.HasPrefix(raw, "data:image/"),
		strings.HasPrefix(raw, "http://"),
		strings.HasPrefix(raw, "https://"):
		return ImageBody{Ref: raw}
	case strings.HasPrefix(raw, `{"type":"pdf"`), strings.HasPrefix(raw, `{"type":"video"`):
		var w fileWire
		if err := json.Unmarshal([]byte(raw), &w); err != nil {
			return TextBody{Text: raw}
		}
		return FileBody{Type: w.Type, Name: w.Name, Data: w.Data, Size: w.Size}
	default:
		return TextBody{Text: raw}
	}
}
