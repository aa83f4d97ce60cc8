package entities

import (
	"regexp"
	"time"
)

type InstanceStatus string

const (
	InstanceStatusCreated InstanceStatus = "created"
	InstanceStatusRunning InstanceStatus = "running"
	InstanceStatusStopped InstanceStatus = "stopped"
)

// Instance names become container names, hostnames and path components, so
// the pattern is deliberately strict: lowercase DNS-label style slugs.
var instanceNamePattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`)

func ValidInstanceName(name string) bool {
	return instanceNamePattern.MatchString(name)
}

// StackPrefix namespaces everything shipd creates in the container runtime
// and the routing layer.
const StackPrefix = "ship-"

func AppContainerName(name string) string { return StackPrefix + name + "-app" }

func DBContainerName(name string) string { return StackPrefix + name + "-db" }

// SubdomainFor derives the routing subdomain for an instance name.
func SubdomainFor(name string) string { return StackPrefix + name }

// InstanceRecord is the registry entry for one tenant stack. The name is
// immutable once provisioned.
type InstanceRecord struct {
	Name          string         `json:"name"`
	DisplayName   string         `json:"display_name"`
	Subdomain     string         `json:"subdomain"`
	URL           string         `json:"url"`
	APIKey        string         `json:"api_key"`
	DBPassword    string         `json:"db_password"`
	CreatedAt     time.Time      `json:"created_at"`
	Status        InstanceStatus `json:"status"`
	PostgresImage string         `json:"postgres_image"`
}

// Defaults are the fleet-wide settings shared by every instance stack.
type Defaults struct {
	Image         string `json:"image"`
	SourcePath    string `json:"source_path"`
	DomainSuffix  string `json:"domain_suffix"`
	PostgresImage string `json:"postgres_image"`
}

// DeploymentConfig is the persisted registry document: the defaults plus all
// instance records. It is always read and written as a whole.
type DeploymentConfig struct {
	Defaults  Defaults                   `json:"defaults"`
	Instances map[string]*InstanceRecord `json:"instances"`
}

// InstanceNames returns the registered names in no particular order.
func (c *DeploymentConfig) InstanceNames() []string {
	names := make([]string, 0, len(c.Instances))
	for name := range c.Instances {
		names = append(names, name)
	}
	return names
}

// BackupRecord describes one dump file in an instance's backup directory. It
// is derived from a filesystem listing, never persisted.
type BackupRecord struct {
	File    string    `json:"file"`
	Size    int64     `json:"size"`
	Created time.Time `json:"created"`
}
