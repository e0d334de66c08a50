package send

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	cmdUtil "github.com/ValentinKolb/dStream/cmd/util"
	"github.com/ValentinKolb/dStream/lib/credentials"
	"github.com/ValentinKolb/dStream/rpc/common"
	"github.com/ValentinKolb/dStream/rpc/server"
	"github.com/ValentinKolb/dStream/rpc/transport"
	"github.com/ValentinKolb/dStream/rpc/transport/pipe"
	"github.com/ValentinKolb/dStream/rpc/transport/websocket"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	SendCmd = &cobra.Command{
		Use:   "send",
		Short: "Send a message activity to a streaming endpoint",
		Long: `Connect to a streaming endpoint via websocket (--url) or pipe (--pipe), post one message activity and print the response.
While connected, requests from the endpoint are answered by an echo processor.`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)

	cmdUtil.SetupStreamFlags(SendCmd)

	key := "url"
	SendCmd.PersistentFlags().String(key, "ws://localhost:3978"+common.PathMessages, cmdUtil.WrapString("The websocket url of the endpoint (ws or wss)"))

	key = "pipe"
	SendCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Connect to this pipe instead of the url"))

	key = "text"
	SendCmd.PersistentFlags().String(key, "hello", cmdUtil.WrapString("The text of the message activity"))

	key = "conversation"
	SendCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The conversation id (a random id is used if empty)"))

	key = "service-url"
	SendCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The service endpoint identity sent with the activity (e.g. urn:botframework:websocket:contoso.com)"))
}

func processConfig(cmd *cobra.Command, _ []string) error {
	return cmdUtil.BindCommandFlags(cmd)
}

func run(cmd *cobra.Command, _ []string) error {
	config, err := cmdUtil.GetStreamConfig()
	if err != nil {
		return err
	}

	provider := cmdUtil.GetCredentials()
	h, err := server.NewStreamingHandler(config, cmdUtil.EchoProcessor, server.WithCredentials(provider))
	if err != nil {
		return err
	}
	defer h.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	t, err := connect(ctx, config, provider)
	if err != nil {
		return err
	}
	if err := h.Attach(ctx, t); err != nil {
		return err
	}

	conversationID := viper.GetString("conversation")
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	activity := &common.Activity{
		Type:         common.ActivityTypeMessage,
		ID:           uuid.NewString(),
		ServiceURL:   viper.GetString("service-url"),
		Conversation: &common.ConversationAccount{ID: conversationID},
		From:         &common.ChannelAccount{ID: "dstream-cli", Role: "user"},
		Text:         viper.GetString("text"),
	}

	resp, err := h.SendActivity(ctx, activity)
	if err != nil {
		return fmt.Errorf("failed to send activity: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// connect dials the pipe or the websocket url of the configuration
func connect(ctx context.Context, config common.StreamConfig, provider credentials.IProvider) (transport.ITransport, error) {
	if config.PipeName != "" {
		return pipe.Dial(ctx, config.PipeName, config.Transport)
	}

	return websocket.NewDialer(config.Transport).Dial(ctx, viper.GetString("url"), dialHeader(ctx, provider))
}

// dialHeader returns the handshake header with a bearer token, or without one if the
// provider fails
func dialHeader(ctx context.Context, provider credentials.IProvider) http.Header {
	header := http.Header{}
	token, err := credentials.Token(ctx, provider)
	if err != nil {
		cmdUtil.Logger.Warningf("Dialing without authorization header: %v", err)
		return header
	}
	header.Set("Authorization", "Bearer "+token)
	return header
}
