package scrape

import (
	"bytes"
	"net/http"
)

// BlockType describes an anti-bot page served instead of a source's data.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

var (
	cloudflareMarkers = [][]byte{[]byte("checking your browser"), []byte("cf-browser-verification")}
	captchaMarkers    = [][]byte{[]byte("g-recaptcha"), []byte("h-captcha"), []byte("captcha-container")}
)

// DetectBlock reports whether a source answered with a challenge page. JSON
// bodies are never treated as blocked, since listing data may mention any
// word.
func DetectBlock(resp *http.Response, body []byte) BlockType {
	if resp == nil {
		return BlockNone
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("Cf-Ray") != "" || resp.Header.Get("Cf-Cache-Status") != "" ||
			resp.Header.Get("Server") == "cloudflare" {
			return BlockCloudflare
		}
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return BlockNone
	}

	lower := bytes.ToLower(body)
	for _, m := range cloudflareMarkers {
		if bytes.Contains(lower, m) {
			return BlockCloudflare
		}
	}
	for _, m := range captchaMarkers {
		if bytes.Contains(lower, m) {
			return BlockCaptcha
		}
	}

	// A tiny page that only asks for javascript carries no data table.
	if len(body) < 2000 {
		if bytes.Contains(lower, []byte("<noscript")) && bytes.Contains(lower, []byte("javascript")) {
			return BlockJSShell
		}
		if bytes.Contains(lower, []byte(`http-equiv="refresh"`)) {
			return BlockJSShell
		}
	}
	return BlockNone
}
