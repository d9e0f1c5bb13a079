package auth

import (
	"fmt"
	"strings"

	"github.com/ashita-ai/beacon/internal/model"
)

// Clients is the fixed set of API clients allowed to request tokens.
type Clients struct {
	byID map[string]model.APIClient
}

// ParseClients parses comma-separated client_id:role:argon2hash entries.
// Whitespace around entries is ignored; an empty spec yields no clients.
func ParseClients(spec string) (*Clients, error) {
	c := &Clients{byID: map[string]model.APIClient{}}
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("auth: client entry %q must be client_id:role:hash", entry)
		}
		if err := model.ValidateClientID(parts[0]); err != nil {
			return nil, fmt.Errorf("auth: %w", err)
		}
		role, err := model.ParseClientRole(parts[1])
		if err != nil {
			return nil, fmt.Errorf("auth: client %s: %w", parts[0], err)
		}
		if !strings.Contains(parts[2], "$") {
			return nil, fmt.Errorf("auth: client %s: key hash is not salt$hash", parts[0])
		}
		if _, dup := c.byID[parts[0]]; dup {
			return nil, fmt.Errorf("auth: duplicate client %s", parts[0])
		}
		c.byID[parts[0]] = model.APIClient{ClientID: parts[0], Role: role, APIKeyHash: parts[2]}
	}
	return c, nil
}

// Len returns the number of configured clients.
func (c *Clients) Len() int { return len(c.byID) }

// Authenticate checks an API key for clientID. Unknown clients still pay
// the hashing cost so timing does not reveal which ids exist.
func (c *Clients) Authenticate(clientID, apiKey string) (model.APIClient, bool) {
	client, ok := c.byID[clientID]
	if !ok {
		DummyVerify()
		return model.APIClient{}, false
	}
	valid, err := VerifyAPIKey(apiKey, client.APIKeyHash)
	if err != nil || !valid {
		return model.APIClient{}, false
	}
	return client, true
}
