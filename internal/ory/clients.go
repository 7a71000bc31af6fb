package ory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// clientsStore reads registered clients from the backend admin API.
//
// Every lookup re-fetches the full client list; nothing is cached, so the
// cost is O(total clients) per call but the data is always fresh. Two
// concurrent lookups each do their own independent fetch-and-parse.
type clientsStore struct {
	provider *Provider
}

// registrarStore adds the RegisterClient capability. It is only constructed
// when a registration URL is configured.
type registrarStore struct {
	clientsStore
}

var (
	_ ClientsStore    = (*clientsStore)(nil)
	_ ClientRegistrar = (*registrarStore)(nil)
)

// GetClient returns the client with the given ID, or nil (and no error) when
// the backend does not list it.
func (s *clientsStore) GetClient(ctx context.Context, clientID string) (*ClientInformation, error) {
	clients, err := s.listClients(ctx)
	if err != nil {
		return nil, err
	}
	return clients[clientID], nil
}

// listClients fetches the full client list from the admin endpoint and maps
// it by client_id.
func (s *clientsStore) listClients(ctx context.Context) (map[string]*ClientInformation, error) {
	p := s.provider

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.backend.clientsURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build client list request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", p.backend.adminAuthorization())

	resp, err := p.do(ctx, "list_clients", req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &BackendError{
			Operation:  "Failed to fetch clients",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	var list []ClientInformation
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, &ValidationError{Subject: "client list", Err: err}
	}

	clients := make(map[string]*ClientInformation, len(list))
	for i := range list {
		if err := list[i].Validate(); err != nil {
			return nil, &ValidationError{Subject: "client list", Err: err}
		}
		clients[list[i].ClientID] = &list[i]
	}
	return clients, nil
}

// RegisterClient registers the client at the configured registration
// endpoint and returns the backend's echo of it.
func (s *registrarStore) RegisterClient(ctx context.Context, client *ClientInformation) (*ClientInformation, error) {
	p := s.provider

	body, err := json.Marshal(client)
	if err != nil {
		return nil, fmt.Errorf("failed to encode client: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoints.RegistrationURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build client registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.do(ctx, "register_client", req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &BackendError{
			Operation:  "Client registration failed",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	var registered ClientInformation
	if err := json.NewDecoder(resp.Body).Decode(&registered); err != nil {
		return nil, &ValidationError{Subject: "registered client", Err: err}
	}
	if err := registered.Validate(); err != nil {
		return nil, &ValidationError{Subject: "registered client", Err: err}
	}
	return &registered, nil
}
