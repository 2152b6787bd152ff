package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"voice-transcription-service/internal/auth"
	"voice-transcription-service/internal/models"
)

var (
	serverURL string
	timeout   time.Duration

	streamARN   string
	fragment    string
	voiceCallID string
	language    string
	engine      string
	specialty   string
	phone       string
	instanceARN string
	anchor      string
	fromCust    bool
	toCust      bool

	keyFile  string
	orgID    string
	apiName  string
	audience string
)

var rootCmd = &cobra.Command{
	Use:   "testclient",
	Short: "Exercise a locally running voice transcription service",
}

var invokeCmd = &cobra.Command{
	Use:   "invoke",
	Short: "Send one transcription request to /v1/invoke",
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := map[string]any{
			"streamARN":               streamARN,
			"startFragmentNum":        fragment,
			"voiceCallId":             voiceCallID,
			"streamAudioFromCustomer": fromCust,
			"streamAudioToCustomer":   toCust,
			"audioStartTimestamp":     anchor,
			"customerPhoneNumber":     phone,
			"instanceARN":             instanceARN,
			"engine":                  engine,
		}
		if language != "" {
			payload["languageCode"] = language
		}
		if specialty != "" {
			payload["specialty"] = specialty
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/v1/invoke", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		start := time.Now()
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("invoke: %w", err)
		}
		defer resp.Body.Close()

		out, _ := io.ReadAll(resp.Body)
		fmt.Printf("%s (%d) in %v\n", out, resp.StatusCode, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check liveness and readiness",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range []string{"/v1/liveness", "/v1/readiness"} {
			resp, err := http.Get(serverURL + path)
			if err != nil {
				return err
			}
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			fmt.Printf("%-14s %d %s\n", path, resp.StatusCode, body)
		}
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token from a local PEM key",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache := auth.NewTokenCache(fileStore{}, auth.Config{
			KeyParamName: keyFile,
			Issuer:       orgID,
			Subject:      apiName,
			Audience:     audience,
		})
		token, err := cache.Token(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

// fileStore reads the "parameter" from a file named by it.
type fileStore struct{}

func (fileStore) GetParameter(_ context.Context, name string) (string, error) {
	b, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrAuth, err)
	}
	return string(b), nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Service base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 15*time.Minute, "Request timeout")

	invokeCmd.Flags().StringVar(&streamARN, "stream-arn", "arn:aws:kinesisvideo:us-east-1:123456789012:stream/test-call/1700000000000", "Kinesis video stream ARN")
	invokeCmd.Flags().StringVar(&fragment, "fragment", "", "Start fragment number")
	invokeCmd.Flags().StringVar(&voiceCallID, "voice-call-id", "0LQtest0000001", "Voice call id")
	invokeCmd.Flags().StringVar(&language, "language", "", "Language code (default en-US)")
	invokeCmd.Flags().StringVar(&engine, "engine", models.EngineStandard, "Recognition engine: standard or medical")
	invokeCmd.Flags().StringVar(&specialty, "specialty", "", "Medical specialty")
	invokeCmd.Flags().StringVar(&phone, "phone", "+15555550100", "Customer phone number")
	invokeCmd.Flags().StringVar(&instanceARN, "instance-arn", "", "Connect instance ARN")
	invokeCmd.Flags().StringVar(&anchor, "anchor", fmt.Sprint(time.Now().UnixMilli()), "Audio start timestamp (epoch ms)")
	invokeCmd.Flags().BoolVar(&fromCust, "from-customer", true, "Transcribe audio from the customer")
	invokeCmd.Flags().BoolVar(&toCust, "to-customer", true, "Transcribe audio to the customer")

	tokenCmd.Flags().StringVar(&keyFile, "key", "private_key.pem", "PEM private key file")
	tokenCmd.Flags().StringVar(&orgID, "org-id", "", "Issuer (org id)")
	tokenCmd.Flags().StringVar(&apiName, "api-name", "", "Subject (call center API name)")
	tokenCmd.Flags().StringVar(&audience, "audience", auth.DefaultAudience, "Token audience")

	rootCmd.AddCommand(invokeCmd, healthCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
