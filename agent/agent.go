// Package agent classifies visitor identity from user-agent strings against
// a table of known AI crawler, assistant, and browser-agent signatures.
package agent

import "regexp"

// Category groups signatures by how the agent consumes content.
type Category string

const (
	// CategoryCrawler is a bulk indexing or training crawler.
	CategoryCrawler Category = "crawler"
	// CategoryLLM is a live retrieval agent acting for a chat session.
	CategoryLLM Category = "llm"
	// CategoryAgent is an autonomous or browser-embedded agent framework.
	CategoryAgent Category = "agent"
)

// Identity is a matched agent: name plus category.
type Identity struct {
	Name     string   `json:"name"`
	Category Category `json:"category"`
}

// Signature maps a user-agent pattern to an identity.
type Signature struct {
	Pattern  *regexp.Regexp
	Name     string
	Category Category
}

// signatures is ordered: first match wins, so more specific patterns must
// precede generic ones (perplexitybot before perplexity, applebot-extended
// before applebot).
var signatures = []Signature{
	// OpenAI
	{regexp.MustCompile(`(?i)gptbot`), "GPTBot", CategoryCrawler},
	{regexp.MustCompile(`(?i)chatgpt-user`), "ChatGPT", CategoryLLM},
	{regexp.MustCompile(`(?i)oai-searchbot`), "OpenAI Search", CategoryCrawler},
	// Anthropic
	{regexp.MustCompile(`(?i)claudebot`), "ClaudeBot", CategoryCrawler},
	{regexp.MustCompile(`(?i)claude-web`), "Claude Web", CategoryLLM},
	{regexp.MustCompile(`(?i)anthropic-ai`), "Anthropic", CategoryCrawler},
	// Google
	{regexp.MustCompile(`(?i)google-extended`), "Google Extended", CategoryCrawler},
	{regexp.MustCompile(`(?i)googleother`), "GoogleOther", CategoryCrawler},
	{regexp.MustCompile(`(?i)gemini`), "Gemini", CategoryLLM},
	// Perplexity
	{regexp.MustCompile(`(?i)perplexitybot`), "PerplexityBot", CategoryCrawler},
	{regexp.MustCompile(`(?i)perplexity`), "Perplexity", CategoryLLM},
	// Microsoft / Bing
	{regexp.MustCompile(`(?i)bingbot`), "BingBot", CategoryCrawler},
	{regexp.MustCompile(`(?i)msnbot`), "MSNBot", CategoryCrawler},
	// Apple
	{regexp.MustCompile(`(?i)applebot-extended`), "Applebot Extended", CategoryCrawler},
	{regexp.MustCompile(`(?i)applebot`), "AppleBot", CategoryCrawler},
	// DuckDuckGo
	{regexp.MustCompile(`(?i)duckassistbot`), "DuckAssistBot", CategoryCrawler},
	// You.com
	{regexp.MustCompile(`(?i)youbot`), "YouBot", CategoryCrawler},
	// Cohere
	{regexp.MustCompile(`(?i)cohere-ai`), "Cohere", CategoryCrawler},
	// Common Crawl, training corpus for many models
	{regexp.MustCompile(`(?i)ccbot`), "CommonCrawl", CategoryCrawler},
	// Meta
	{regexp.MustCompile(`(?i)meta-externalagent`), "MetaAI", CategoryCrawler},
	{regexp.MustCompile(`(?i)facebookbot`), "FacebookBot", CategoryCrawler},
	// Amazon
	{regexp.MustCompile(`(?i)amazonbot`), "AmazonBot", CategoryCrawler},
	// Bytedance
	{regexp.MustCompile(`(?i)bytespider`), "ByteSpider", CategoryCrawler},
	// Diffbot
	{regexp.MustCompile(`(?i)diffbot`), "Diffbot", CategoryAgent},
	// WebMCP browser agents
	{regexp.MustCompile(`(?i)webmcp`), "WebMCP Agent", CategoryAgent},
	// Generic AI signals
	{regexp.MustCompile(`(?i)ai-agent`), "AI Agent", CategoryAgent},
	{regexp.MustCompile(`(?i)llmspider`), "LLM Spider", CategoryCrawler},
	{regexp.MustCompile(`(?i)brightbot`), "BrightBot", CategoryCrawler},
	{regexp.MustCompile(`(?i)timpibot`), "TimpiBot", CategoryCrawler},
}

// Detect matches userAgent against the signature table in order and returns
// the first hit. An empty or unrecognized user-agent yields ok=false, never
// an error.
func Detect(userAgent string) (Identity, bool) {
	if userAgent == "" {
		return Identity{}, false
	}
	for _, s := range signatures {
		if s.Pattern.MatchString(userAgent) {
			return Identity{Name: s.Name, Category: s.Category}, true
		}
	}
	return Identity{}, false
}

// Signatures returns a copy of the signature table in match order.
func Signatures() []Signature {
	out := make([]Signature, len(signatures))
	copy(out, signatures)
	return out
}
