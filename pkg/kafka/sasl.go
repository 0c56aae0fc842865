package kafka

import (
	"fmt"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

var (
	supportedMechanisms = []string{"PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"}
	supportedProtocols  = []string{"SASL_SSL", "SASL_PLAINTEXT"}
)

// SASLConfig holds optional SASL authentication settings.
// Authentication is enabled only when both Username and Password are set.
type SASLConfig struct {
	Username         string `env:"KAFKA_SASL_USERNAME"`
	Password         string `env:"KAFKA_SASL_PASSWORD"`
	Mechanism        string `env:"KAFKA_SASL_MECHANISM"     envDefault:"SCRAM-SHA-512"`
	SecurityProtocol string `env:"KAFKA_SECURITY_PROTOCOL"  envDefault:"SASL_SSL"`
}

// Enabled reports whether SASL credentials were provided.
func (s SASLConfig) Enabled() bool {
	return s.Username != "" && s.Password != ""
}

// Validate checks the mechanism and protocol when SASL is enabled.
func (s SASLConfig) Validate() error {
	if !s.Enabled() {
		return nil
	}
	if !contains(supportedMechanisms, strings.ToUpper(s.Mechanism)) {
		return fmt.Errorf("unsupported sasl mechanism %q (supported: %s)",
			s.Mechanism, strings.Join(supportedMechanisms, ", "))
	}
	if !contains(supportedProtocols, strings.ToUpper(s.SecurityProtocol)) {
		return fmt.Errorf("unsupported security protocol %q (supported: %s)",
			s.SecurityProtocol, strings.Join(supportedProtocols, ", "))
	}
	return nil
}

// ApplyToConfigMap sets the SASL keys on cfg. It is a no-op when SASL is disabled.
func (s SASLConfig) ApplyToConfigMap(cfg *kafka.ConfigMap) {
	if !s.Enabled() {
		return
	}
	_ = cfg.SetKey("security.protocol", strings.ToUpper(s.SecurityProtocol))
	_ = cfg.SetKey("sasl.mechanisms", strings.ToUpper(s.Mechanism))
	_ = cfg.SetKey("sasl.username", s.Username)
	_ = cfg.SetKey("sasl.password", s.Password)
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
