package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/miloc/internal/flagx"
)

var serverFlags = []string{
	"-a", "-grpc", "-d", "-s", "-t", "-r", "-m", "-k",
	"-u", "-p", "-b", "-g", "-e",
	"-max-upload", "-cipher", "-log-format", "-log-level",
}

// parseFlags overlays Config with command-line flags.
//
//	-a string          HTTP bind address (":8000")
//	-grpc string       gRPC health bind address (":50051", "" disables)
//	-d string          PostgreSQL DSN
//	-s string          JWT HMAC secret key
//	-t int             access token validity, minutes
//	-r int             refresh token validity, minutes
//	-m string          media root directory (fs backend)
//	-k string          storage backend: fs | s3
//	-u, -p string      S3 user / password
//	-b, -g, -e string  S3 bucket / region / base endpoint
//	-max-upload int    upload size limit, bytes
//	-cipher int        blob scheme for new uploads
//	-log-format string json | text
//	-log-level string  debug | info | warn | error
//
// Arguments are first filtered to the flags above so flags consumed
// elsewhere (-c) never break parsing. Invalid values panic.
func parseFlags(config *Config, args []string) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address")
	fs.StringVar(&config.EndpointAddrGRPC, "grpc", config.EndpointAddrGRPC, "gRPC health address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessMinutes := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (minutes)")
	refreshMinutes := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (minutes)")

	fs.StringVar(&config.MediaRoot, "m", config.MediaRoot, "media root directory")
	fs.StringVar(&config.StorageBackend, "k", config.StorageBackend, "storage backend (fs|s3)")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.Int64Var(&config.MaxUploadBytes, "max-upload", config.MaxUploadBytes, "max upload size (bytes)")
	fs.IntVar(&config.CipherVersion, "cipher", config.CipherVersion, "cipher version for new blobs")
	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "log format (json|text)")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")

	if err := fs.Parse(flagx.FilterArgs(args, serverFlags)); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessMinutes) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshMinutes) * time.Minute
}
