package storage

// Config selects and configures the file storage backend.
type Config struct {
	Driver   string `env:"STORAGE_DRIVER" envDefault:"local"` // Driver is "local" or "s3".
	LocalDir string `env:"STORAGE_LOCAL_DIR" envDefault:"./data/uploads"`

	S3Bucket         string `env:"S3_BUCKET"`
	S3Region         string `env:"S3_REGION"`
	S3AccessKeyID    string `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey      string `env:"S3_SECRET_ACCESS_KEY"`
	S3Endpoint       string `env:"S3_ENDPOINT"`                            // S3Endpoint targets S3-compatible services such as MinIO.
	S3ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE" envDefault:"false"` // S3ForcePathStyle is required by most S3-compatible services.
}
