package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/inferno-games/quantum-salvation/internal/handlers"
)

// apiClient wraps the session API for the console.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func (c *apiClient) healthy() bool {
	resp, err := c.http.Get(c.baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

func (c *apiClient) createSession() (*handlers.SessionResponse, error) {
	resp, err := c.http.Post(c.baseURL+"/v1/sessions", "application/json", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	if resp.StatusCode != http.StatusCreated {
		return nil, apiError(resp)
	}
	var session handlers.SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

func (c *apiClient) getSession(id string) (*handlers.SessionResponse, error) {
	resp, err := c.http.Get(c.baseURL + "/v1/sessions/" + id)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var session handlers.SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

func (c *apiClient) sendAction(id string, action *handlers.ActionRequest) (*handlers.ActionResponse, error) {
	body, err := json.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal action: %w", err)
	}

	resp, err := c.http.Post(c.baseURL+"/v1/sessions/"+id+"/actions", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var result handlers.ActionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode action response: %w", err)
	}
	return &result, nil
}

func (c *apiClient) tick(id string, delta float64) (*handlers.SessionResponse, error) {
	body, err := json.Marshal(handlers.TickRequest{Delta: delta})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tick: %w", err)
	}

	resp, err := c.http.Post(c.baseURL+"/v1/sessions/"+id+"/tick", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var session handlers.SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

func apiError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	var errResp handlers.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return fmt.Errorf("%s (status %d)", errResp.Error, resp.StatusCode)
	}
	return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
}
