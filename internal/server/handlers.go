package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/knight1008610000/codegen-server/internal/budget"
	"github.com/knight1008610000/codegen-server/internal/catalog"
	"github.com/knight1008610000/codegen-server/internal/models"
	"github.com/knight1008610000/codegen-server/internal/prompt"
	"github.com/knight1008610000/codegen-server/internal/sanitize"
)

// functionEntry mirrors the wire shape of an other_functions element. Name is
// a pointer so an absent field can be replaced with a synthetic one.
type functionEntry struct {
	Name      *string `json:"name"`
	Signature string  `json:"signature"`
}

type completionRequest struct {
	Prompt         *string         `json:"prompt"`
	Suffix         *string         `json:"suffix"`
	Includes       []string        `json:"includes"`
	OtherFunctions []functionEntry `json:"other_functions"`
	MaxTokens      int             `json:"max_tokens"`
}

type completionResponse struct {
	Success    bool               `json:"success"`
	Suggestion *models.Suggestion `json:"suggestion"`
}

func (s *Server) handleCompletion(c echo.Context) error {
	var req completionRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	if req.Prompt == nil {
		return requestError{Status: http.StatusBadRequest, Code: codeInvalidParams, Message: "missing required parameter: prompt"}
	}
	if req.Suffix == nil {
		return requestError{Status: http.StatusBadRequest, Code: codeInvalidParams, Message: "missing required parameter: suffix"}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.cfg.FIM.MaxTokens
	}

	completionCtx := models.CompletionContext{
		Prompt:         *req.Prompt,
		Suffix:         *req.Suffix,
		Includes:       req.Includes,
		OtherFunctions: lowerFunctions(req.OtherFunctions),
	}
	budgeted := budget.Allocate(completionCtx)

	p, err := s.registry.Get(s.cfg.FIM.Provider)
	if err != nil {
		return mapError(err)
	}
	model, err := catalog.DefaultModel(s.cfg.FIM.Provider)
	if err != nil {
		return mapError(err)
	}

	raw, err := p.FIM(c.Request().Context(), budgeted, model, maxTokens)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, completionResponse{
		Success:    true,
		Suggestion: sanitize.Suggestion(raw),
	})
}

// chatContext mirrors the wire shape of the chat context object. Unlike the
// fill-in-middle body, absent prompt/suffix default to empty strings.
type chatContext struct {
	Prompt         string          `json:"prompt"`
	Suffix         string          `json:"suffix"`
	Includes       []string        `json:"includes"`
	OtherFunctions []functionEntry `json:"other_functions"`
}

type chatRequest struct {
	Context   *chatContext `json:"context"`
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Provider  string       `json:"provider"`
}

type chatResponse struct {
	Success  bool       `json:"success"`
	Response chatResult `json:"response"`
}

type chatResult struct {
	Text     string `json:"text"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
}

func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	if req.Context == nil {
		return requestError{Status: http.StatusBadRequest, Code: codeInvalidParams, Message: "missing required parameter: context"}
	}

	// The catalog matches provider keys case-insensitively; the registry
	// stores them lowercase.
	providerKey := strings.ToLower(req.Provider)
	if providerKey == "" {
		providerKey = s.cfg.Chat.Provider
	}

	model := req.Model
	if model == "" {
		var err error
		model, err = catalog.DefaultModel(providerKey)
		if err != nil {
			return mapError(err)
		}
	}
	if _, err := catalog.Validate(providerKey, model); err != nil {
		return mapError(err)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.cfg.Chat.MaxTokens
	}

	messages := prompt.Build(models.CompletionContext{
		Prompt:         req.Context.Prompt,
		Suffix:         req.Context.Suffix,
		Includes:       req.Context.Includes,
		OtherFunctions: lowerFunctions(req.Context.OtherFunctions),
	})

	p, err := s.registry.Get(providerKey)
	if err != nil {
		return mapError(err)
	}

	text, err := p.Chat(c.Request().Context(), messages, model, maxTokens)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, chatResponse{
		Success: true,
		Response: chatResult{
			Text:     text,
			Model:    model,
			Provider: p.Name(),
		},
	})
}

type modelsResponse struct {
	Success   bool                     `json:"success"`
	Providers []string                 `json:"providers"`
	Models    map[string]catalog.Entry `json:"models"`
}

func (s *Server) handleModels(c echo.Context) error {
	return c.JSON(http.StatusOK, modelsResponse{
		Success:   true,
		Providers: catalog.Providers(),
		Models:    catalog.All(),
	})
}

// lowerFunctions converts wire entries to the internal shape, assigning a
// synthetic name to entries whose name field was absent.
func lowerFunctions(entries []functionEntry) []models.FunctionRef {
	if len(entries) == 0 {
		return nil
	}
	out := make([]models.FunctionRef, len(entries))
	for i, entry := range entries {
		name := fmt.Sprintf("function_%d", i)
		if entry.Name != nil {
			name = *entry.Name
		}
		out[i] = models.FunctionRef{Name: name, Signature: entry.Signature}
	}
	return out
}

// decodeRequestBody parses a JSON body, distinguishing a syntactically broken
// body (INVALID_JSON) from a well-formed one carrying wrongly typed fields
// (INVALID_PARAMS).
func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return requestError{Status: http.StatusBadRequest, Code: codeInvalidJSON, Message: "request body is required"}
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return requestError{
				Status:  http.StatusBadRequest,
				Code:    codeInvalidParams,
				Message: fmt.Sprintf("parameter %q has invalid type", typeErr.Field),
			}
		}
		return requestError{Status: http.StatusBadRequest, Code: codeInvalidJSON, Message: "request body is not valid JSON"}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{Status: http.StatusBadRequest, Code: codeInvalidJSON, Message: "request body must contain a single JSON object"}
	}
	return nil
}
