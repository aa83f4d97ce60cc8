package compose

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/getship/shipd/pkg/domain/entities"
)

func testInstance() *entities.InstanceRecord {
	return &entities.InstanceRecord{
		Name:        "acme",
		DisplayName: "Acme Corp",
		Subdomain:   "ship-acme",
		URL:         "https://ship-acme.example.com",
		APIKey:      "key123",
		DBPassword:  "pw456",
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:      entities.InstanceStatusCreated,
	}
}

func testDefaults() entities.Defaults {
	return entities.Defaults{
		Image:         "ship-app",
		SourcePath:    "/srv/ship-app",
		DomainSuffix:  "example.com",
		PostgresImage: "postgres:16-alpine",
	}
}

func TestRenderComposeDocument(t *testing.T) {
	data, err := Render(testInstance(), testDefaults())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	var doc composeDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("rendered document is not valid yaml: %v", err)
	}

	app, ok := doc.Services["app"]
	if !ok {
		t.Fatal("app service missing")
	}
	if app.Image != "ship-app:current" {
		t.Errorf("app image = %q", app.Image)
	}
	if app.ContainerName != "ship-acme-app" {
		t.Errorf("app container = %q", app.ContainerName)
	}
	if app.Restart != "unless-stopped" {
		t.Errorf("app restart = %q", app.Restart)
	}
	if !reflect.DeepEqual(app.DependsOn, []string{"db"}) {
		t.Errorf("app depends_on = %v", app.DependsOn)
	}

	labels := strings.Join(app.Labels, "\n")
	for _, want := range []string{
		"traefik.enable=true",
		"traefik.http.routers.ship-acme.rule=Host(`ship-acme.example.com`)",
		"traefik.http.routers.ship-acme.entrypoints=websecure",
		"traefik.http.routers.ship-acme.tls.certresolver=letsencrypt",
		"traefik.http.services.ship-acme.loadbalancer.server.port=3000",
	} {
		if !strings.Contains(labels, want) {
			t.Errorf("label %q missing from %v", want, app.Labels)
		}
	}

	db, ok := doc.Services["db"]
	if !ok {
		t.Fatal("db service missing")
	}
	if db.Image != "postgres:16-alpine" {
		t.Errorf("db image = %q", db.Image)
	}
	if db.ContainerName != "ship-acme-db" {
		t.Errorf("db container = %q", db.ContainerName)
	}
	if !reflect.DeepEqual(db.Volumes, []string{"dbdata:/var/lib/postgresql/data"}) {
		t.Errorf("db volumes = %v", db.Volumes)
	}

	if _, ok := doc.Volumes["dbdata"]; !ok {
		t.Error("dbdata volume missing")
	}
	if net, ok := doc.Networks["edge"]; !ok || !net.External {
		t.Errorf("edge network = %+v", doc.Networks)
	}
}

func TestRenderHonorsInstancePostgresImage(t *testing.T) {
	inst := testInstance()
	inst.PostgresImage = "postgres:15"

	data, err := Render(inst, testDefaults())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	var doc composeDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Services["db"].Image != "postgres:15" {
		t.Errorf("db image = %q, want instance override", doc.Services["db"].Image)
	}
}

func TestRenderSecrets(t *testing.T) {
	vars := parseEnv(RenderSecrets(testInstance()))

	want := map[string]string{
		"APP_NAME":          "acme",
		"APP_URL":           "https://ship-acme.example.com",
		"API_KEY":           "key123",
		"POSTGRES_USER":     "shipapp",
		"POSTGRES_PASSWORD": "pw456",
		"POSTGRES_DB":       "shipapp",
		"DATABASE_URL":      "postgres://shipapp:pw456@db:5432/shipapp",
	}
	if !reflect.DeepEqual(vars, want) {
		t.Errorf("secrets = %v, want %v", vars, want)
	}
}

func TestEnvRoundTrip(t *testing.T) {
	in := map[string]string{
		"A":     "1",
		"B":     "with=equals",
		"EMPTY": "",
	}
	out := parseEnv(marshalEnv(in))
	if !reflect.DeepEqual(out, in) {
		t.Errorf("round trip = %v, want %v", out, in)
	}

	body := []byte("# comment\n\nKEY=value\nbroken line\n")
	vars := parseEnv(body)
	if !reflect.DeepEqual(vars, map[string]string{"KEY": "value"}) {
		t.Errorf("parsed = %v", vars)
	}
}
