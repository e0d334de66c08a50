package util

import (
	"context"
	"strings"

	"github.com/ValentinKolb/dStream/lib/credentials"
	"github.com/ValentinKolb/dStream/rpc/common"
	"github.com/ValentinKolb/dStream/rpc/server"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Logger = logger.GetLogger(common.LoggerCLI)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupStreamFlags adds the connection flags shared by serve and send to a command
func SetupStreamFlags(cmd *cobra.Command) {
	defaults := common.DefaultStreamConfig()

	key := "timeout"
	cmd.PersistentFlags().Int(key, defaults.Transport.TimeoutSecond, WrapString("Seconds to wait for the response to an outbound request (0 = no timeout)"))

	key = "write-timeout"
	cmd.PersistentFlags().Int(key, 0, WrapString("Seconds a single write to the connection may take (0 = no timeout)"))

	key = "max-frame-kb"
	cmd.PersistentFlags().Int(key, defaults.Transport.MaxFrameBytes/1024, WrapString("Maximum size of one frame in KB"))

	key = "max-concurrent"
	cmd.PersistentFlags().Int(key, 0, WrapString("Maximum number of inbound requests processed concurrently per connection (0 = unlimited)"))

	key = "reconnect-per-minute"
	cmd.PersistentFlags().Int(key, defaults.Reconnect.PerMinute, WrapString("How many times per minute a dropped websocket connection may be re-established (0 = unlimited)"))

	key = "reconnect-burst"
	cmd.PersistentFlags().Int(key, defaults.Reconnect.Burst, WrapString("Reconnect attempts allowed in quick succession"))

	key = "token"
	cmd.PersistentFlags().String(key, "", WrapString("Static bearer token used for reconnects and reported by the version endpoint"))

	key = "log-level"
	cmd.PersistentFlags().String(key, defaults.Log.Level, WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "log-file"
	cmd.PersistentFlags().String(key, "", WrapString("Write logs to this file instead of stdout, the file is rotated at 100 MB"))
}

// InitConfig loads .env files and binds environment variables (DSTREAM_<FLAG>)
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dstream")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetStreamConfig reads the stream configuration from viper and initializes the loggers
func GetStreamConfig() (common.StreamConfig, error) {
	config := common.DefaultStreamConfig()

	if ua := viper.GetString("user-agent"); ua != "" {
		config.UserAgent = ua
	}
	config.Endpoint = viper.GetString("endpoint")
	config.PipeName = viper.GetString("pipe")
	config.Serializer = viper.GetString("serializer")

	config.Transport = common.TransportConfig{
		TimeoutSecond:         viper.GetInt("timeout"),
		WriteTimeoutSecond:    viper.GetInt("write-timeout"),
		MaxFrameBytes:         viper.GetInt("max-frame-kb") * 1024,
		MaxConcurrentRequests: viper.GetInt("max-concurrent"),
	}
	config.Reconnect = common.ReconnectConfig{
		PerMinute: viper.GetInt("reconnect-per-minute"),
		Burst:     viper.GetInt("reconnect-burst"),
	}
	config.Log = common.LogConfig{
		Level:      viper.GetString("log-level"),
		File:       viper.GetString("log-file"),
		MaxSizeMB:  100,
		MaxBackups: 3,
	}

	if err := common.InitLoggers(config.Log); err != nil {
		return config, err
	}
	return config, nil
}

// GetCredentials returns the credential provider configured by the token flag
func GetCredentials() credentials.IProvider {
	if token := viper.GetString("token"); token != "" {
		return credentials.Static(token)
	}
	return credentials.None()
}

// EchoProcessor accepts every activity, logs it and answers with a fresh resource id
var EchoProcessor = server.ProcessorFunc(func(ctx context.Context, activity *common.Activity, onTurn server.TurnCallback) (*common.InvokeResponse, error) {
	Logger.Infof("Received %s activity in conversation %s: %q", activity.Type, activity.ConversationID(), activity.Text)

	if onTurn != nil {
		if err := onTurn(ctx, activity); err != nil {
			return nil, err
		}
	}

	if activity.IsEndOfConversation() {
		return nil, nil
	}
	return &common.InvokeResponse{
		Status: 200,
		Body:   common.ResourceResponse{ID: uuid.NewString()},
	}, nil
})
