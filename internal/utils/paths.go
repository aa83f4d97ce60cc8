package utils

import (
	"path"
)

// On-disk layout under the shipd data directory:
//
//	deployments.json      instance registry
//	build-history.json    append-only build log
//	tokens.json           hashed access tokens
//	stacks/<name>/        rendered compose file + secrets env
//	backups/<name>/       database dumps

func RegistryFile(dataDir string) string {
	return path.Join(dataDir, "deployments.json")
}

func HistoryFile(dataDir string) string {
	return path.Join(dataDir, "build-history.json")
}

func TokensFile(dataDir string) string {
	return path.Join(dataDir, "tokens.json")
}

func StackDir(dataDir, name string) string {
	return path.Join(dataDir, "stacks", name)
}

func ComposeFile(dataDir, name string) string {
	return path.Join(StackDir(dataDir, name), "docker-compose.yml")
}

func SecretsFile(dataDir, name string) string {
	return path.Join(StackDir(dataDir, name), ".env")
}

func BackupDir(dataDir, name string) string {
	return path.Join(dataDir, "backups", name)
}
