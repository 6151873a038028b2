package tool

import "encoding/json"

// Tool result payloads arrive as free-form JSON whose shape depends on the
// tool name. DecodeResult turns the raw content into a tagged variant so
// call sites never parse ad hoc; unknown tools decode to OpaquePayload.

// ResultPayload is the decoded form of a tool call's result content.
type ResultPayload interface {
	isResultPayload()
}

// ImagePayload is produced by image-generating tools.
type ImagePayload struct {
	Prompt    string   `json:"prompt,omitempty"`
	ImageURLs []string `json:"imageUrls"`
}

// SearchPayload is produced by web-search style tools.
type SearchPayload struct {
	Query   string         `json:"query,omitempty"`
	Results []SearchResult `json:"results"`
}

// SearchResult is one hit within a SearchPayload.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// OpaquePayload carries content this package has no decoder for.
type OpaquePayload struct {
	Raw json.RawMessage
}

func (ImagePayload) isResultPayload()  {}
func (SearchPayload) isResultPayload() {}
func (OpaquePayload) isResultPayload() {}

// NameGenerateImage is the designated image-producing tool.
const NameGenerateImage = "generate_image"

var imageProducing = map[string]bool{
	NameGenerateImage: true,
}

// ProducesImages reports whether a completed call of the named tool may
// carry image URLs that should surface into the transcript.
func ProducesImages(name string) bool {
	return imageProducing[name]
}

// DecodeResult decodes a tool call's result content according to the tool
// name. Content that does not parse as the expected shape falls back to
// OpaquePayload rather than failing.
func DecodeResult(name, content string) ResultPayload {
	raw := []byte(content)
	switch name {
	case NameGenerateImage:
		var p ImagePayload
		if err := json.Unmarshal(raw, &p); err == nil && len(p.ImageURLs) > 0 {
			return p
		}
	case "search_web":
		var p SearchPayload
		if err := json.Unmarshal(raw, &p); err == nil && p.Results != nil {
			return p
		}
	}
	return OpaquePayload{Raw: json.RawMessage(raw)}
}

// ResultImageURLs extracts image URLs from a completed tool call's result:
// the direct ImageURLs field unioned with any URLs embedded in the decoded
// content payload. Only image-producing tools contribute.
func ResultImageURLs(name string, content *string, direct []string) []string {
	if !ProducesImages(name) {
		return nil
	}
	urls := append([]string(nil), direct...)
	if content != nil {
		if p, ok := DecodeResult(name, *content).(ImagePayload); ok {
			urls = append(urls, p.ImageURLs...)
		}
	}
	return urls
}
