package compose

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/getship/shipd/pkg/domain/entities"
)

// Fixed database identity inside every stack. The password is the only
// per-instance secret; it lives in the stack's .env file.
const (
	DBUser = "shipapp"
	DBName = "shipapp"

	appServiceName = "app"
	dbServiceName  = "db"
	edgeNetwork    = "edge"
)

type composeDoc struct {
	Services map[string]composeService `yaml:"services"`
	Volumes  map[string]*struct{}      `yaml:"volumes,omitempty"`
	Networks map[string]composeNet     `yaml:"networks,omitempty"`
}

type composeService struct {
	Image         string   `yaml:"image"`
	ContainerName string   `yaml:"container_name"`
	Restart       string   `yaml:"restart"`
	EnvFile       []string `yaml:"env_file,omitempty"`
	Labels        []string `yaml:"labels,omitempty"`
	DependsOn     []string `yaml:"depends_on,omitempty"`
	Volumes       []string `yaml:"volumes,omitempty"`
	Networks      []string `yaml:"networks,omitempty"`
}

type composeNet struct {
	External bool `yaml:"external,omitempty"`
}

// Render produces the compose document for one instance stack: the shared
// application image fronted by traefik routing on the instance subdomain,
// plus a private postgres service.
func Render(inst *entities.InstanceRecord, defaults entities.Defaults) ([]byte, error) {
	if inst.Name == "" {
		return nil, entities.NewValidationError("instance name is required")
	}
	router := entities.SubdomainFor(inst.Name)
	host := fmt.Sprintf("%s.%s", router, defaults.DomainSuffix)
	pgImage := inst.PostgresImage
	if pgImage == "" {
		pgImage = defaults.PostgresImage
	}

	doc := composeDoc{
		Services: map[string]composeService{
			appServiceName: {
				Image:         defaults.Image + ":" + entities.TagCurrent,
				ContainerName: entities.AppContainerName(inst.Name),
				Restart:       "unless-stopped",
				EnvFile:       []string{".env"},
				Labels: []string{
					"traefik.enable=true",
					fmt.Sprintf("traefik.http.routers.%s.rule=Host(`%s`)", router, host),
					fmt.Sprintf("traefik.http.routers.%s.entrypoints=websecure", router),
					fmt.Sprintf("traefik.http.routers.%s.tls.certresolver=letsencrypt", router),
					fmt.Sprintf("traefik.http.services.%s.loadbalancer.server.port=3000", router),
				},
				DependsOn: []string{dbServiceName},
				Networks:  []string{edgeNetwork, "default"},
			},
			dbServiceName: {
				Image:         pgImage,
				ContainerName: entities.DBContainerName(inst.Name),
				Restart:       "unless-stopped",
				EnvFile:       []string{".env"},
				Volumes:       []string{"dbdata:/var/lib/postgresql/data"},
				Networks:      []string{"default"},
			},
		},
		Volumes: map[string]*struct{}{"dbdata": nil},
		Networks: map[string]composeNet{
			edgeNetwork: {External: true},
		},
	}
	return yaml.Marshal(doc)
}

// RenderSecrets produces the per-instance .env contents consumed by both
// services.
func RenderSecrets(inst *entities.InstanceRecord) []byte {
	lines := map[string]string{
		"APP_NAME":          inst.Name,
		"APP_URL":           inst.URL,
		"API_KEY":           inst.APIKey,
		"POSTGRES_USER":     DBUser,
		"POSTGRES_PASSWORD": inst.DBPassword,
		"POSTGRES_DB":       DBName,
		"DATABASE_URL": fmt.Sprintf("postgres://%s:%s@db:5432/%s",
			DBUser, inst.DBPassword, DBName),
	}
	return marshalEnv(lines)
}

func marshalEnv(vars map[string]string) []byte {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(vars[k])
		b.WriteString("\n")
	}
	return []byte(b.String())
}

// parseEnv reads a .env body back into a map, ignoring blank lines and
// comments.
func parseEnv(data []byte) map[string]string {
	vars := map[string]string{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		vars[key] = value
	}
	return vars
}
