package person

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is the backend's user identifier. The backend may send it as a JSON
// number or string; it is always stored as a string.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("user id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Profile is the signed-in user as returned by the backend, plus the roles and
// permissions derived from the current token. Fields the client does not model
// are kept in Extra so the stored snapshot round-trips.
type Profile struct {
	ID                 ID       `json:"id"`
	Email              string   `json:"email"`
	FirstName          string   `json:"firstName"`
	LastName           string   `json:"lastName"`
	MustChangePassword bool     `json:"mustChangePassword"`
	TwoFactorEnabled   bool     `json:"twoFactorEnabled"`
	Roles              []string `json:"roles"`
	Permissions        []string `json:"permissions"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownFields = map[string]struct{}{
	"id": {}, "email": {}, "firstName": {}, "lastName": {},
	"mustChangePassword": {}, "twoFactorEnabled": {}, "roles": {}, "permissions": {},
}

// profileFields breaks the MarshalJSON/UnmarshalJSON recursion.
type profileFields Profile

func (p *Profile) UnmarshalJSON(b []byte) error {
	var fields profileFields
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	for k := range knownFields {
		delete(all, k)
	}
	if len(all) == 0 {
		all = nil
	}
	*p = Profile(fields)
	p.Extra = all
	return nil
}

func (p Profile) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(profileFields(p))
	if err != nil {
		return nil, err
	}
	if len(p.Extra) == 0 {
		return known, nil
	}
	out := make(map[string]json.RawMessage, len(p.Extra)+len(knownFields))
	for k, v := range p.Extra {
		if _, clash := knownFields[k]; clash {
			continue
		}
		out[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		out[k] = v
	}
	return json.Marshal(out)
}

// FullName joins first and last name, falling back to the email.
func (p *Profile) FullName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	case p.LastName != "":
		return p.LastName
	default:
		return p.Email
	}
}

// WithAccess returns a copy of p carrying roles and permissions. The derived
// lists replace whatever the backend sent.
func (p *Profile) WithAccess(roles, permissions []string) *Profile {
	cp := p.Clone()
	cp.Roles = append([]string{}, roles...)
	cp.Permissions = append([]string{}, permissions...)
	return cp
}

// Clone deep-copies p so callers cannot mutate session state.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Roles != nil {
		cp.Roles = append([]string{}, p.Roles...)
	}
	if p.Permissions != nil {
		cp.Permissions = append([]string{}, p.Permissions...)
	}
	if p.Extra != nil {
		cp.Extra = make(map[string]json.RawMessage, len(p.Extra))
		for k, v := range p.Extra {
			cp.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &cp
}
