package dtos

type ProvisionInstanceRequest struct {
	Name          string `json:"name"          binding:"required"`
	DisplayName   string `json:"display_name"  binding:"required"`
	APIKey        string `json:"api_key"`
	PostgresImage string `json:"postgres_image"`
}

type UpdateEnvRequest struct {
	Env     map[string]string `json:"env"     binding:"required"`
	Restart bool              `json:"restart"`
}

type RollbackRequest struct {
	Tag string `json:"tag" binding:"required"`
}

type CreateTokenRequest struct {
	Label string `json:"label" binding:"required"`
	Role  string `json:"role"  binding:"required"`
}

type ArchiveBackupRequest struct {
	File string `json:"file" binding:"required"`
}

type ArchiveImageRequest struct {
	Tag string `json:"tag" binding:"required"`
}
