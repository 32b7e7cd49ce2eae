package content

import (
	"bytes"
	"errors"

	"github.com/h2non/filetype"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var (
	policy = bluemonday.UGCPolicy()
	md     = goldmark.New()
)

// Sanitize removes unsafe HTML from the input string using a strict policy.
// It is used for sanitizing user inputs like message bodies and agent names.
func Sanitize(input string) string {
	return policy.Sanitize(input)
}

// RenderMessage converts markdown message content to sanitized HTML.
func RenderMessage(input string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(input), &buf); err != nil {
		return "", err
	}
	return policy.Sanitize(buf.String()), nil
}

// DetectImage returns the mime type of the data if it is a supported
// image format, used to validate avatar uploads.
func DetectImage(data []byte) (string, error) {
	if !filetype.IsImage(data) {
		return "", errors.New("not a supported image format")
	}
	t, err := filetype.Match(data)
	if err != nil {
		return "", err
	}
	return t.MIME.Value, nil
}
