package config

type PersistenceCfg struct {
	// Dir specifies the directory where snapshot files are stored.
	// The directory must exist and be writable.
	Dir string `yaml:"dump_dir"`

	// Name defines the base name of the snapshot files. The final file name
	// may include extensions depending on configuration (e.g. ".gz").
	Name string `yaml:"dump_name"`

	// Gzip enables gzip compression of snapshot files.
	Gzip bool `yaml:"gzip"`

	// Crc32Control adds a per-record CRC32 checksum to snapshot files and
	// verifies it on restore.
	Crc32Control bool `yaml:"crc32_control"`

	// MaxVersions keeps only the newest N snapshot version directories.
	// Zero disables rotation.
	MaxVersions int `yaml:"max_versions"`
}

func (cfg *PersistenceCfg) Enabled() bool {
	return cfg != nil
}
