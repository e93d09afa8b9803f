package validation

import (
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/doorman-proxy/doorman/pkg/apis/options"
	"github.com/doorman-proxy/doorman/pkg/logger"
)

// ConfigureLogger applies the logging options to the standard logger, sending
// output to a rotated file when one is configured.
func ConfigureLogger(o options.Logging) error {
	if len(o.File.Filename) > 0 {
		// Validate that the file/dir can be written
		file, err := os.OpenFile(o.File.Filename, os.O_WRONLY|os.O_CREATE, 0666)
		if err != nil {
			if os.IsPermission(err) {
				return err
			}
		} else {
			file.Close()
		}

		logger.Printf("Redirecting logging to file: %s", o.File.Filename)

		logWriter := &lumberjack.Logger{
			Filename:   o.File.Filename,
			MaxSize:    o.File.MaxSize, // megabytes
			MaxAge:     o.File.MaxAge,  // days
			MaxBackups: o.File.MaxBackups,
			Compress:   o.File.Compress,
		}

		logger.SetOutput(logWriter)
		logger.SetErrOutput(logWriter)
	}

	// Supply a sanity warning to the logger if all logging is disabled
	if !o.StandardEnabled && !o.AuthEnabled && !o.RequestEnabled {
		logger.Print("Warning: Logging disabled. No further logs will be shown.")
	}

	logger.SetStandardEnabled(o.StandardEnabled)
	logger.SetAuthEnabled(o.AuthEnabled)
	logger.SetReqEnabled(o.RequestEnabled)
	logger.SetErrToInfo(o.ErrToInfo)
	logger.SetStandardTemplate(o.StandardFormat)
	logger.SetAuthTemplate(o.AuthFormat)
	logger.SetReqTemplate(o.RequestFormat)
	logger.SetExcludePaths(o.ExcludePaths)

	return nil
}
