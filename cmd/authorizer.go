package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/dghubble/oauth1"
	twauth "github.com/dghubble/oauth1/twitter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/truemediaorg/detectbot/config"
)

func init() {
	rootCmd.AddCommand(authorizerCmd)
}

var authorizerCmd = &cobra.Command{
	Use:   "authorizer",
	Short: "Generates the access token pair detectbot signs replies and likes with",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := config.FromEnvfile()
		setupLogging(cfg)

		secrets, err := newSecretsClient(ctx)
		if err != nil {
			log.Panic(err)
		}

		// Only the consumer pair is needed here; the access pair is what we are minting
		twitterSecrets, err := config.LoadSecret[config.TwitterSecretData](ctx, secrets, cfg.Twitter.SecretPath)
		if err != nil {
			log.Panicf("twitter secrets read error: %v", err)
		}

		flow := pinFlow{
			requester: &oauth1.Config{
				ConsumerKey:    twitterSecrets.ConsumerKey,
				ConsumerSecret: twitterSecrets.ConsumerSecret,
				CallbackURL:    "oob",
				Endpoint:       twauth.AuthorizeEndpoint,
			},
			in:  os.Stdin,
			out: os.Stdout,
		}
		token, err := flow.run()
		if err != nil {
			log.Fatalf("authorization failed: %v", err)
		}

		fmt.Fprintln(os.Stdout, "Add these to the twitter secret as accessToken / accessTokenSecret:")
		fmt.Fprintf(os.Stdout, "token: %s\nsecret: %s\n", token.Token, token.TokenSecret)
	},
}

// tokenRequester is the slice of oauth1.Config the PIN flow uses.
type tokenRequester interface {
	RequestToken() (requestToken, requestSecret string, err error)
	AuthorizationURL(requestToken string) (*url.URL, error)
	AccessToken(requestToken, requestSecret, verifier string) (accessToken, accessSecret string, err error)
}

// pinFlow runs the out-of-band OAuth 1.0a handshake: the operator opens the
// authorization URL, approves the app, and pastes back the PIN.
type pinFlow struct {
	requester tokenRequester
	in        io.Reader
	out       io.Writer
}

func (f pinFlow) run() (*oauth1.Token, error) {
	requestToken, requestSecret, err := f.requester.RequestToken()
	if err != nil {
		return nil, fmt.Errorf("request token: %w", err)
	}
	authURL, err := f.requester.AuthorizationURL(requestToken)
	if err != nil {
		return nil, fmt.Errorf("authorization url: %w", err)
	}
	fmt.Fprintf(f.out, "Open this URL in your browser:\n%s\n", authURL.String())
	fmt.Fprint(f.out, "Paste your PIN here: ")

	pin, err := bufio.NewReader(f.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read pin: %w", err)
	}
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return nil, errors.New("no pin entered")
	}

	accessToken, accessSecret, err := f.requester.AccessToken(requestToken, requestSecret, pin)
	if err != nil {
		return nil, fmt.Errorf("access token: %w", err)
	}
	return oauth1.NewToken(accessToken, accessSecret), nil
}
