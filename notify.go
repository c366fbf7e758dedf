package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/slack-go/slack"
)

// Notifier announces the outcome of a run.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type slackNotifier struct {
	webhookURL string
}

func newSlackNotifier(webhookURL string) *slackNotifier {
	return &slackNotifier{webhookURL: webhookURL}
}

func (n *slackNotifier) Notify(ctx context.Context, text string) error {
	err := slack.PostWebhookContext(ctx, n.webhookURL, &slack.WebhookMessage{Text: text})
	if err != nil {
		return fmt.Errorf("failed to post slack message: %w", err)
	}
	return nil
}

// notifyRun sends the run summary through n. A failed notification is only
// logged.
func notifyRun(ctx context.Context, n Notifier, batchID string, result Result, runErr error) {
	if err := n.Notify(ctx, runSummary(batchID, result, runErr)); err != nil {
		log.Printf("Warning: %v", err)
	}
}

// runSummary renders the one-line message for a finished run.
func runSummary(batchID string, result Result, err error) string {
	if err != nil {
		return fmt.Sprintf(":x: Dataset preparation for batch %s failed: %v", batchID, err)
	}

	parts := []string{fmt.Sprintf(":white_check_mark: Dataset preparation for batch %s succeeded.", batchID)}
	parts = append(parts, describeDataset(result.General))
	if result.LowVolume != nil {
		parts = append(parts, describeDataset(*result.LowVolume))
	} else if result.LowVolumeSkipped != "" {
		parts = append(parts, "Low volume dataset skipped: "+result.LowVolumeSkipped)
	}
	return strings.Join(parts, " ")
}

func describeDataset(d DatasetResult) string {
	return fmt.Sprintf("%s: %d train / %d test across %d labels.", d.Name, d.Train, d.Test, d.Labels)
}
