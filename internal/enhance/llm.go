package enhance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"OnionHarvester/internal/domain"
	"OnionHarvester/internal/extract"
	"OnionHarvester/internal/infrastructure/llm"
	"OnionHarvester/internal/ports"
)

const (
	noneSentinel       = "NONE"
	findContextLimit   = 2000
	promptContextLimit = 1000
	listTemperature    = 0.1
	classifyTemp       = 0.3
	listMaxTokens      = 500

	reasonNoAPIKey      = "No API key provided"
	reasonAPIError      = "API error"
	reasonJSONError     = "JSON parsing error"
	reasonNoDescription = "No description provided"
)

// triggerTerms gate FindHidden; text without any of them is never sent out.
var triggerTerms = []string{
	".onion", "darkweb", "dark web", "tor", "hidden service",
	"marketplace", "drugs", "bitcoin", "crypto", "anonymous",
}

var jsonObjectFormat = json.RawMessage(`{"type":"json_object"}`)

const findHiddenPrompt = "You are an expert at identifying obfuscated or encoded .onion URLs in text. " +
	"Extract any potential .onion links from the text, even if they are somewhat hidden or obfuscated. " +
	"Only return actual .onion links that are likely to be valid. " +
	"A valid .onion address consists of 16 or 56 base32 characters (a-z, 2-7) followed by .onion. " +
	"Return only the links, one per line. If none found, return 'NONE'."

const classifyPrompt = "You are an expert at classifying dark web .onion links based on their URL structure " +
	"and contextual information. Classify the provided .onion link into one of these categories: " +
	"marketplace, forum, blog, search_engine, email, cryptocurrency, hosting, social_network, " +
	"library, technical_service, or unknown. Return a JSON object with the fields: " +
	"category, confidence (0.0-1.0), and description. " +
	"DO NOT visit or open the link. Make your classification based purely on the URL structure and " +
	"any provided context."

const filterPrompt = "You are an expert at identifying valid .onion URLs. " +
	"You will be presented with a list of potential .onion links extracted from text. " +
	"Analyze each link and determine if it's likely a real .onion address or a false positive. " +
	"Return only the list of links that are likely valid .onion addresses, one per line. " +
	"If none are valid, return 'NONE'."

// LLM is the live Enhancer backed by a chat completion collaborator.
type LLM struct {
	client ports.ChatClient
	logger *slog.Logger
}

var _ Enhancer = (*LLM)(nil)

// NewLLM wires a chat client.
func NewLLM(client ports.ChatClient, logger *slog.Logger) *LLM {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLM{client: client, logger: logger.With("component", "enhance")}
}

func (e *LLM) Enabled() bool {
	return e != nil && e.client != nil
}

// HasTriggerTerm reports whether text mentions any term that justifies an external call.
func HasTriggerTerm(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range triggerTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// FindHidden asks the collaborator for obfuscated addresses. Every returned
// line goes through the matcher so only grammatical addresses survive.
func (e *LLM) FindHidden(ctx context.Context, text string) []domain.Address {
	if !e.Enabled() || !HasTriggerTerm(text) {
		return nil
	}

	out, err := e.client.Complete(ctx, ports.ChatRequest{
		Messages: []ports.ChatMessage{
			{Role: "system", Content: findHiddenPrompt},
			{Role: "user", Content: prefix(text, findContextLimit)},
		},
		Temperature: listTemperature,
		MaxTokens:   listMaxTokens,
	})
	if err != nil {
		e.logger.Warn("find hidden addresses failed", "operation", "find_hidden", "error", err)
		return nil
	}
	if isNone(out) {
		return nil
	}
	return matchLines(out)
}

// FilterFalsePositives keeps the candidates the collaborator judges valid.
// An explicit NONE drops everything. Errors, empty output or output without
// any recognizable candidate return addrs unchanged.
func (e *LLM) FilterFalsePositives(ctx context.Context, addrs []domain.Address, text string) []domain.Address {
	if !e.Enabled() || len(addrs) == 0 {
		return addrs
	}

	lines := make([]string, len(addrs))
	for i, a := range addrs {
		lines[i] = string(a)
	}
	out, err := e.client.Complete(ctx, ports.ChatRequest{
		Messages: []ports.ChatMessage{
			{Role: "system", Content: filterPrompt},
			{Role: "user", Content: "Here are potential .onion links extracted from a paste:\n\n" +
				strings.Join(lines, "\n") + "\n\nContext from the paste:\n" + prefix(text, promptContextLimit)},
		},
		Temperature: listTemperature,
		MaxTokens:   listMaxTokens,
	})
	if err != nil {
		e.logger.Warn("filter false positives failed, keeping candidates", "operation", "filter", "error", err)
		return addrs
	}
	if isNone(out) {
		return nil
	}

	accepted := make(map[domain.Address]struct{})
	for _, a := range matchLines(out) {
		accepted[a] = struct{}{}
	}
	kept := make([]domain.Address, 0, len(addrs))
	for _, a := range addrs {
		if _, ok := accepted[a]; ok {
			kept = append(kept, a)
		}
	}
	if len(kept) == 0 {
		e.logger.Warn("filter output matched no candidate, keeping candidates", "operation", "filter", "candidates", len(addrs))
		return addrs
	}
	return kept
}

type classificationPayload struct {
	Category    *string  `json:"category"`
	Confidence  *float64 `json:"confidence"`
	Description *string  `json:"description"`
}

// Classify asks for a category of addr given the surrounding text. Failures
// yield the unknown classification carrying the reason.
func (e *LLM) Classify(ctx context.Context, addr domain.Address, text string) domain.Classification {
	if !e.Enabled() {
		return domain.UnknownClassification(reasonNoAPIKey)
	}

	prompt := "Classify this .onion link without visiting it: " + string(addr)
	if text != "" {
		prompt += "\n\nContext from the paste where this link was found:\n" + prefix(text, promptContextLimit) + "..."
	}
	out, err := e.client.Complete(ctx, ports.ChatRequest{
		Messages: []ports.ChatMessage{
			{Role: "system", Content: classifyPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:    classifyTemp,
		ResponseFormat: jsonObjectFormat,
	})
	if err != nil {
		e.logger.Warn("classification failed", "operation", "classify", "address", addr,
			"error", fmt.Errorf("%w: %v", domain.ErrClassification, err))
		return domain.UnknownClassification(failureReason(err))
	}

	var payload classificationPayload
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		e.logger.Warn("classification response is not json", "operation", "classify", "address", addr,
			"error", fmt.Errorf("%w: %v", domain.ErrParse, err))
		return domain.UnknownClassification(reasonJSONError)
	}

	result := domain.Classification{
		Category:    domain.CategoryUnknown,
		Description: reasonNoDescription,
	}
	if payload.Category != nil {
		result.Category = domain.ParseCategory(*payload.Category)
	}
	if payload.Confidence != nil {
		result.Confidence = clamp(*payload.Confidence)
	}
	if payload.Description != nil {
		result.Description = *payload.Description
	}
	return result
}

func failureReason(err error) string {
	if errors.Is(err, llm.ErrNoAPIKey) {
		return reasonNoAPIKey
	}
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s: %d", reasonAPIError, apiErr.Status)
	}
	return reasonAPIError
}

func matchLines(out string) []domain.Address {
	var found []domain.Address
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		found = append(found, extract.Extract(line)...)
	}
	return domain.DedupeAddresses(found)
}

func isNone(out string) bool {
	return strings.EqualFold(strings.Trim(strings.TrimSpace(out), `'".`), noneSentinel)
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// prefix returns at most n runes of s.
func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
