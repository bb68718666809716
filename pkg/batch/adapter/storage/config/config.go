package config

// StorageConfig holds configuration for a single storage connection.
type StorageConfig struct {
	Type            string `yaml:"type"`             // Type of storage ("local" or "gcs").
	BucketName      string `yaml:"bucket_name"`      // Default bucket name for operations.
	CredentialsFile string `yaml:"credentials_file"` // Path to a service account key for GCS. Empty uses application default credentials.
	BaseDir         string `yaml:"base_dir"`         // Base directory for local file system operations.
	Prefix          string `yaml:"prefix"`           // Prefix prepended to every object name.
	Endpoint        string `yaml:"endpoint"`         // Endpoint overrides the GCS API endpoint (emulators).
}
