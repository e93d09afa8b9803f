package options

import (
	"github.com/spf13/pflag"

	"github.com/doorman-proxy/doorman/pkg/logger"
)

// Logging contains all options required for configuring the logging
type Logging struct {
	AuthEnabled     bool     `cfg:"auth_logging" flag:"auth-logging"`
	AuthFormat      string   `cfg:"auth_logging_format" flag:"auth-logging-format"`
	RequestEnabled  bool     `cfg:"request_logging" flag:"request-logging"`
	RequestFormat   string   `cfg:"request_logging_format" flag:"request-logging-format"`
	StandardEnabled bool     `cfg:"standard_logging" flag:"standard-logging"`
	StandardFormat  string   `cfg:"standard_logging_format" flag:"standard-logging-format"`
	ErrToInfo       bool     `cfg:"errors_to_info_log" flag:"errors-to-info-log"`
	ExcludePaths    []string `cfg:"exclude_logging_paths" flag:"exclude-logging-path"`
	RequestIDHeader string   `cfg:"request_id_header" flag:"request-id-header"`

	File LogFileOptions `cfg:",squash"`
}

// LogFileOptions contains options for configuring logging to a file
type LogFileOptions struct {
	Filename   string `cfg:"logging_filename" flag:"logging-filename"`
	MaxSize    int    `cfg:"logging_max_size" flag:"logging-max-size"`
	MaxAge     int    `cfg:"logging_max_age" flag:"logging-max-age"`
	MaxBackups int    `cfg:"logging_max_backups" flag:"logging-max-backups"`
	Compress   bool   `cfg:"logging_compress" flag:"logging-compress"`
}

// loggingDefaults creates a Logging structure, populating each field with its default value
func loggingDefaults() Logging {
	return Logging{
		AuthEnabled:     true,
		AuthFormat:      logger.DefaultAuthLoggingFormat,
		RequestEnabled:  true,
		RequestFormat:   logger.DefaultRequestLoggingFormat,
		StandardEnabled: true,
		StandardFormat:  logger.DefaultStandardLoggingFormat,
		ErrToInfo:       false,
		ExcludePaths:    nil,
		RequestIDHeader: "X-Request-Id",
		File: LogFileOptions{
			Filename:   "",
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 0,
			Compress:   false,
		},
	}
}

func loggingFlagSet(flagSet *pflag.FlagSet) {
	flagSet.Bool("auth-logging", true, "Log authentication attempts")
	flagSet.String("auth-logging-format", logger.DefaultAuthLoggingFormat, "Template for authentication log lines")
	flagSet.Bool("request-logging", true, "Log requests")
	flagSet.String("request-logging-format", logger.DefaultRequestLoggingFormat, "Template for request log lines")
	flagSet.Bool("standard-logging", true, "Log standard runtime information")
	flagSet.String("standard-logging-format", logger.DefaultStandardLoggingFormat, "Template for standard log lines")
	flagSet.Bool("errors-to-info-log", false, "Log errors to the info log level instead of the error level")
	flagSet.StringSlice("exclude-logging-path", []string{}, "Exclude logging requests to paths (eg: '/path1,/path2,/path3')")
	flagSet.String("request-id-header", "X-Request-Id", "Request header to use as the request ID")
	flagSet.String("logging-filename", "", "File to log requests to, empty for stdout")
	flagSet.Int("logging-max-size", 100, "Maximum size in megabytes of the log file before rotation")
	flagSet.Int("logging-max-age", 7, "Maximum number of days to retain old log files")
	flagSet.Int("logging-max-backups", 0, "Maximum number of old log files to retain; 0 to disable")
	flagSet.Bool("logging-compress", false, "Should rotated log files be compressed using gzip")
}
