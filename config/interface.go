package config

import (
	"encoding/json"
	"fmt"
	"github.com/tidwall/gjson"
)

// InterfaceConfig is one interface definition file; the Type field selects
// the concrete Config shape.
type InterfaceConfig struct {
	Name   string `json:"-"`
	Type   string
	Config any
}

func (g *InterfaceConfig) UnmarshalJSON(data []byte) error {
	if result := gjson.GetBytes(data, "Type"); !result.Exists() {
		return fmt.Errorf("failed to find interface type information")
	} else {
		g.Type = result.String()
	}

	switch g.Type {
	case "http":
		g.Config = &HTTPInterfaceConfig{}
	case "mqtt":
		g.Config = &MQTTInterfaceConfig{}
	default:
		return fmt.Errorf("unknown interface configuration type: %s", g.Type)
	}

	if result := gjson.GetBytes(data, "Config"); result.Exists() {
		return json.Unmarshal([]byte(result.Raw), g.Config)
	} else {
		return fmt.Errorf("unable to find Config stanza: %s", g.Type)
	}
}

type HTTPInterfaceConfig struct {
	Port int

	// Auth selects the authentication provider guarding the API; empty or
	// "null" leaves it open, "jwt" requires signed bearer tokens.
	Auth JWTAuth
}

type JWTAuth struct {
	Type string

	// PEM encoded EC private key file, required for "jwt".
	KeyFile       string
	KeyIdentifier string
	TokenTTL      int
}

type MQTTInterfaceConfig struct {
	Server string

	Credentials *MQTTCredentials

	Retained    bool
	QOS         byte
	TopicPrefix string

	PublishStateOnConnect bool
}

type MQTTCredentials struct {
	Username string
	Password string
}
