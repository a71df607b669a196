package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/miloc/internal/flagx"
	"github.com/dmitrijs2005/miloc/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept
// "30m" style strings or integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	MediaRoot                    string         `json:"media_root"`
	StorageBackend               string         `json:"storage_backend"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	MaxUploadBytes               int64          `json:"max_upload_bytes"`
	CipherVersion                int            `json:"cipher_version"`
	LogFormat                    string         `json:"log_format"`
	LogLevel                     string         `json:"log_level"`
	GateAllowPrefixes            []string       `json:"gate_allow_prefixes"`
	GateBlockPrefixes            []string       `json:"gate_block_prefixes"`
}

// parseJson overlays Config with the JSON file named by -c or -config.
// Keys missing from the file keep their current values. An unreadable file
// or invalid JSON panics.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	*config = fromJson(c)
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrHTTP:             c.EndpointAddrHTTP,
		EndpointAddrGRPC:             c.EndpointAddrGRPC,
		DatabaseDSN:                  c.DatabaseDSN,
		SecretKey:                    c.SecretKey,
		AccessTokenValidityDuration:  timex.Duration{Duration: c.AccessTokenValidityDuration},
		RefreshTokenValidityDuration: timex.Duration{Duration: c.RefreshTokenValidityDuration},
		MediaRoot:                    c.MediaRoot,
		StorageBackend:               c.StorageBackend,
		S3RootUser:                   c.S3RootUser,
		S3RootPassword:               c.S3RootPassword,
		S3Bucket:                     c.S3Bucket,
		S3Region:                     c.S3Region,
		S3BaseEndpoint:               c.S3BaseEndpoint,
		MaxUploadBytes:               c.MaxUploadBytes,
		CipherVersion:                c.CipherVersion,
		LogFormat:                    c.LogFormat,
		LogLevel:                     c.LogLevel,
		GateAllowPrefixes:            c.GateAllowPrefixes,
		GateBlockPrefixes:            c.GateBlockPrefixes,
	}
}

func fromJson(c *JsonConfig) Config {
	return Config{
		EndpointAddrHTTP:             c.EndpointAddrHTTP,
		EndpointAddrGRPC:             c.EndpointAddrGRPC,
		DatabaseDSN:                  c.DatabaseDSN,
		SecretKey:                    c.SecretKey,
		AccessTokenValidityDuration:  c.AccessTokenValidityDuration.Duration,
		RefreshTokenValidityDuration: c.RefreshTokenValidityDuration.Duration,
		MediaRoot:                    c.MediaRoot,
		StorageBackend:               c.StorageBackend,
		S3RootUser:                   c.S3RootUser,
		S3RootPassword:               c.S3RootPassword,
		S3Bucket:                     c.S3Bucket,
		S3Region:                     c.S3Region,
		S3BaseEndpoint:               c.S3BaseEndpoint,
		MaxUploadBytes:               c.MaxUploadBytes,
		CipherVersion:                c.CipherVersion,
		LogFormat:                    c.LogFormat,
		LogLevel:                     c.LogLevel,
		GateAllowPrefixes:            c.GateAllowPrefixes,
		GateBlockPrefixes:            c.GateBlockPrefixes,
	}
}
