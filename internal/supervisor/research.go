package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const instantAnswerURL = "https://api.duckduckgo.com/"

// ddgResponse is the slice of the instant-answer payload we consume.
type ddgResponse struct {
	Abstract      string `json:"Abstract"`
	AbstractText  string `json:"AbstractText"`
	Answer        string `json:"Answer"`
	RelatedTopics []struct {
		Text string `json:"Text"`
	} `json:"RelatedTopics"`
	Infobox struct {
		Content []struct {
			Label string `json:"label"`
			Value any    `json:"value"`
		} `json:"content"`
	} `json:"Infobox"`
}

// searchWeb queries the DuckDuckGo instant-answer endpoint and flattens
// the interesting fields into one capped text block. No API key needed.
func (s *Supervisor) searchWeb(ctx context.Context, query string) (string, error) {
	timeout := 15 * time.Second
	if t := s.cfg.Research.TimeoutSeconds; t > 0 {
		timeout = time.Duration(t) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, instantAnswerURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("research: build request: %w", err)
	}
	req.Header.Set("User-Agent", "overblick/1.0")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("research: search request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("research: search status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("research: read response: %w", err)
	}

	var ddg ddgResponse
	if err := json.Unmarshal(body, &ddg); err != nil {
		return "", fmt.Errorf("research: decode response: %w", err)
	}
	return flattenResults(&ddg, s.maxResultChars()), nil
}

func (s *Supervisor) maxResultChars() int {
	if n := s.cfg.Research.MaxResultChars; n > 0 {
		return n
	}
	return 3000
}

func flattenResults(ddg *ddgResponse, maxChars int) string {
	var parts []string
	if ddg.AbstractText != "" {
		parts = append(parts, ddg.AbstractText)
	} else if ddg.Abstract != "" {
		parts = append(parts, ddg.Abstract)
	}
	if ddg.Answer != "" {
		parts = append(parts, "Answer: "+ddg.Answer)
	}
	for i, topic := range ddg.RelatedTopics {
		if i >= 5 {
			break
		}
		if topic.Text != "" {
			parts = append(parts, "- "+topic.Text)
		}
	}
	for _, entry := range ddg.Infobox.Content {
		if entry.Label == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %v", entry.Label, entry.Value))
	}

	out := strings.Join(parts, "\n")
	if len(out) > maxChars {
		out = out[:maxChars]
	}
	return out
}
