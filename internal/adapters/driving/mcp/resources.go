package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// URIScheme is the custom URI scheme for coachkb resources.
	uriScheme = "coachkb://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		URI:         uriScheme + "settings/retrieval",
		Name:        "retrieval-settings",
		Description: "Effective retrieval limits, diversity caps and answer policy patterns",
		MIMEType:    "application/json",
	}, s.handleRetrievalSettingsResource)
}

// retrievalSettingsInfo is the published view of the settings. Credentials
// and store DSNs are never exposed.
type retrievalSettingsInfo struct {
	Limit           int      `json:"limit"`
	RecallLimit     int      `json:"recall_limit"`
	RecallThreshold float64  `json:"recall_threshold"`
	KeywordLimit    int      `json:"keyword_limit"`
	PerSource       int      `json:"per_source"`
	PerSpeaker      int      `json:"per_speaker"`
	PerConversation int      `json:"per_conversation"`
	EmbeddingModel  string   `json:"embedding_model"`
	PolicyPatterns  []string `json:"policy_patterns"`
}

// handleRetrievalSettingsResource returns the retrieval configuration.
func (s *Server) handleRetrievalSettingsResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Settings == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	settings, err := s.ports.Settings.Get()
	if err != nil {
		return nil, fmt.Errorf("getting settings: %w", err)
	}

	r := settings.Retrieval
	info := retrievalSettingsInfo{
		Limit:           r.Limit,
		RecallLimit:     r.RecallLimit,
		RecallThreshold: r.RecallThreshold,
		KeywordLimit:    r.KeywordLimit,
		PerSource:       r.Caps.PerSource,
		PerSpeaker:      r.Caps.PerSpeaker,
		PerConversation: r.Caps.PerConversation,
		EmbeddingModel:  settings.Embedding.Model,
		PolicyPatterns:  settings.Answer.PolicyPatterns,
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling settings: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
