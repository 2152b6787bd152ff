// Package attributes updates Amazon Connect contact attributes for a call.
package attributes

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/connect"

	"voice-transcription-service/internal/observability/logging"
)

// TranscriptionStatusKey is the contact attribute carrying transcription status.
const TranscriptionStatusKey = "sf_realtime_transcription_status"

// StatusRateLimited is written when the transcript endpoint rejects messages with 429.
const StatusRateLimited = "Exceeded Limits for creating messages in Transcription"

// Updater writes attributes onto a contact.
type Updater interface {
	UpdateCallAttributes(ctx context.Context, callID, instanceARN string, attrs map[string]string) error
}

// ConnectAPI is the subset of the Connect client used here.
type ConnectAPI interface {
	UpdateContactAttributes(ctx context.Context, in *connect.UpdateContactAttributesInput, optFns ...func(*connect.Options)) (*connect.UpdateContactAttributesOutput, error)
}

// ConnectUpdater implements Updater over the Connect API.
type ConnectUpdater struct {
	client ConnectAPI
}

// NewConnectUpdater wraps a Connect client.
func NewConnectUpdater(client ConnectAPI) *ConnectUpdater {
	return &ConnectUpdater{client: client}
}

// UpdateCallAttributes sets attrs on the contact whose initial contact id is callID.
func (u *ConnectUpdater) UpdateCallAttributes(ctx context.Context, callID, instanceARN string, attrs map[string]string) error {
	_, err := u.client.UpdateContactAttributes(ctx, &connect.UpdateContactAttributesInput{
		InitialContactId: aws.String(callID),
		InstanceId:       aws.String(InstanceID(instanceARN)),
		Attributes:       attrs,
	})
	if err != nil {
		return fmt.Errorf("update contact attributes for %s: %w", callID, err)
	}
	logging.WithComponent("attributes").Info().
		Str("voiceCallId", callID).
		Int("attributes", len(attrs)).
		Msg("Contact attributes updated")
	return nil
}

// InstanceID returns the instance id from an instance ARN
// (arn:aws:connect:<region>:<account>:instance/<id>). Values that are not
// instance ARNs are returned unchanged.
func InstanceID(instanceARN string) string {
	if i := strings.LastIndex(instanceARN, "instance/"); i >= 0 {
		return instanceARN[i+len("instance/"):]
	}
	return instanceARN
}
