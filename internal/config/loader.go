package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/rpattn/dropfeed/internal/db"
	"github.com/spf13/viper"
)

// DefaultEntities are the drop folders polled when none are configured.
var DefaultEntities = []string{"product", "employee", "customer", "location", "order"}

// Config is the full service configuration.
type Config struct {
	Entities    []string
	Schedule    string
	WorkDir     string
	Source      SourceConfig
	Destination DestinationConfig
	Audit       AuditConfig
	Database    db.Config
	Transfer    TransferConfig
	HTTPAddr    string
}

// SourceConfig selects where drop files are read from.
type SourceConfig struct {
	Type     string // ftp or local
	Root     string
	Host     string
	Port     int
	User     string
	Password string
	Timeout  time.Duration
}

// DestinationConfig selects where sanitized files are published.
type DestinationConfig struct {
	Type      string // webhdfs or s3
	Root      string
	URL       string
	User      string
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Timeout   time.Duration
}

// AuditConfig selects the audit log backend.
type AuditConfig struct {
	Backend  string // postgres or hbase
	Table    string
	ZKQuorum string
}

type TransferConfig struct {
	EntityWorkers int
	FileWorkers   int
}

const (
	SourceFTP   = "ftp"
	SourceLocal = "local"

	DestinationWebHDFS = "webhdfs"
	DestinationS3      = "s3"

	AuditPostgres = "postgres"
	AuditHBase    = "hbase"
)

func setDefaults(v *viper.Viper) {
	dbDefaults := db.DefaultConfig()

	v.SetDefault("entities", DefaultEntities)
	v.SetDefault("schedule", "@daily")
	v.SetDefault("work_dir", "/tmp/dropfeed")

	v.SetDefault("source.type", SourceFTP)
	v.SetDefault("source.root", "/userfile")
	v.SetDefault("source.host", "localhost")
	v.SetDefault("source.port", 21)
	v.SetDefault("source.user", "anonymous")
	v.SetDefault("source.password", "")
	v.SetDefault("source.timeout", 30*time.Second)

	v.SetDefault("destination.type", DestinationWebHDFS)
	v.SetDefault("destination.root", "/user/hdfs/userfile")
	v.SetDefault("destination.url", "http://localhost:9870")
	v.SetDefault("destination.user", "hdfs")
	v.SetDefault("destination.endpoint", "localhost:9000")
	v.SetDefault("destination.bucket", "")
	v.SetDefault("destination.access_key", "")
	v.SetDefault("destination.secret_key", "")
	v.SetDefault("destination.use_ssl", false)
	v.SetDefault("destination.timeout", 5*time.Minute)

	v.SetDefault("audit.backend", AuditPostgres)
	v.SetDefault("audit.table", "transfer_logs")
	v.SetDefault("audit.zk_quorum", "localhost:2181")

	v.SetDefault("database.host", dbDefaults.Host)
	v.SetDefault("database.port", dbDefaults.Port)
	v.SetDefault("database.user", dbDefaults.User)
	v.SetDefault("database.password", dbDefaults.Password)
	v.SetDefault("database.dbname", dbDefaults.DBName)
	v.SetDefault("database.sslmode", dbDefaults.SSLMode)

	v.SetDefault("transfer.entity_workers", 5)
	v.SetDefault("transfer.file_workers", 1)

	v.SetDefault("http.addr", ":8080")
}

// Load reads config.yaml from configPath (optional), applies DROPFEED_* environment
// overrides such as DROPFEED_SOURCE_HOST, and validates the result.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.SetEnvPrefix("DROPFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		log.Printf("[config] no config.yaml found in %s, using defaults and env vars", configPath)
	} else {
		log.Printf("[config] loaded %s", v.ConfigFileUsed())
	}

	cfg := Config{
		Entities: splitList(v.GetStringSlice("entities")),
		Schedule: v.GetString("schedule"),
		WorkDir:  v.GetString("work_dir"),
		Source: SourceConfig{
			Type:     strings.ToLower(v.GetString("source.type")),
			Root:     v.GetString("source.root"),
			Host:     v.GetString("source.host"),
			Port:     v.GetInt("source.port"),
			User:     v.GetString("source.user"),
			Password: v.GetString("source.password"),
			Timeout:  v.GetDuration("source.timeout"),
		},
		Destination: DestinationConfig{
			Type:      strings.ToLower(v.GetString("destination.type")),
			Root:      v.GetString("destination.root"),
			URL:       v.GetString("destination.url"),
			User:      v.GetString("destination.user"),
			Endpoint:  v.GetString("destination.endpoint"),
			Bucket:    v.GetString("destination.bucket"),
			AccessKey: v.GetString("destination.access_key"),
			SecretKey: v.GetString("destination.secret_key"),
			UseSSL:    v.GetBool("destination.use_ssl"),
			Timeout:   v.GetDuration("destination.timeout"),
		},
		Audit: AuditConfig{
			Backend:  strings.ToLower(v.GetString("audit.backend")),
			Table:    v.GetString("audit.table"),
			ZKQuorum: v.GetString("audit.zk_quorum"),
		},
		Database: db.Config{
			Host:     v.GetString("database.host"),
			Port:     v.GetInt("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			DBName:   v.GetString("database.dbname"),
			SSLMode:  v.GetString("database.sslmode"),
		},
		Transfer: TransferConfig{
			EntityWorkers: v.GetInt("transfer.entity_workers"),
			FileWorkers:   v.GetInt("transfer.file_workers"),
		},
		HTTPAddr: v.GetString("http.addr"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that cannot be defaulted.
func (c Config) Validate() error {
	if len(c.Entities) == 0 {
		return errors.New("config: at least one entity is required")
	}
	seen := make(map[string]struct{}, len(c.Entities))
	for _, name := range c.Entities {
		if name == "" {
			return errors.New("config: entity names must not be empty")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("config: duplicate entity %q", name)
		}
		seen[name] = struct{}{}
	}

	switch c.Source.Type {
	case SourceFTP:
		if c.Source.Host == "" {
			return errors.New("config: source.host is required for the ftp source")
		}
	case SourceLocal:
	default:
		return fmt.Errorf("config: unknown source.type %q", c.Source.Type)
	}

	switch c.Destination.Type {
	case DestinationWebHDFS:
		if c.Destination.URL == "" {
			return errors.New("config: destination.url is required for webhdfs")
		}
	case DestinationS3:
		if c.Destination.Bucket == "" {
			return errors.New("config: destination.bucket is required for s3")
		}
	default:
		return fmt.Errorf("config: unknown destination.type %q", c.Destination.Type)
	}

	switch c.Audit.Backend {
	case AuditPostgres, AuditHBase:
	default:
		return fmt.Errorf("config: unknown audit.backend %q", c.Audit.Backend)
	}

	if c.WorkDir == "" {
		return errors.New("config: work_dir is required")
	}
	return nil
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
