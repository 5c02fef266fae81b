// Package embedding maps text to fixed-dimension dense vectors via an
// OpenAI-compatible embeddings endpoint.
package embedding

import (
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// NewClient builds an OpenAI client from explicit credentials. An empty
// baseURL means the default OpenAI endpoint; any OpenAI-compatible server
// works when baseURL is set.
func NewClient(apiKey, baseURL string) *openai.Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &client
}
