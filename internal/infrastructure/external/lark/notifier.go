package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fieldops/field-reports/internal/domain/entity"
	"github.com/fieldops/field-reports/internal/domain/schema"
	"go.uber.org/zap"
)

var ErrNoReceiver = errors.New("lark receiver is not configured")

// Notifier posts a text message when a report has been submitted.
type Notifier struct {
	sender        Sender
	receiveIDType string
	receiveID     string
	logger        *zap.Logger
}

// NewNotifier creates a notifier sending to receiveID.
func NewNotifier(sender Sender, receiveIDType, receiveID string, logger *zap.Logger) (*Notifier, error) {
	if receiveID == "" {
		return nil, ErrNoReceiver
	}
	if receiveIDType == "" {
		receiveIDType = ReceiveIDChat
	}
	return &Notifier{
		sender:        sender,
		receiveIDType: receiveIDType,
		receiveID:     receiveID,
		logger:        logger,
	}, nil
}

// ReportSubmitted announces a submitted report.
func (n *Notifier) ReportSubmitted(ctx context.Context, s *schema.Schema, d *entity.Draft, serverID string) error {
	content, err := json.Marshal(map[string]string{"text": SubmittedText(s, d, serverID)})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	messageID, err := n.sender.SendMessage(ctx, n.receiveIDType, n.receiveID, "text", string(content))
	if err != nil {
		return fmt.Errorf("failed to notify submission: %w", err)
	}

	n.logger.Info("Submission notification sent",
		zap.String("report_type", s.ReportType),
		zap.String("report_id", serverID),
		zap.String("message_id", messageID))
	return nil
}

// SubmittedText renders the notification body.
func SubmittedText(s *schema.Schema, d *entity.Draft, serverID string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s submitted (report %s)", s.Title, serverID)
	for _, name := range []string{"project", "date", "inspector"} {
		f, ok := s.HeaderField(name)
		if !ok {
			continue
		}
		if v := d.Header[name]; !v.IsArray() && strings.TrimSpace(v.Text) != "" {
			fmt.Fprintf(&sb, "\n%s: %s", f.DisplayLabel(), v.Text)
		}
	}
	if d.PreparedBy != "" {
		fmt.Fprintf(&sb, "\nPrepared by: %s", d.PreparedBy)
	}
	if n := len(d.Photos); n > 0 {
		fmt.Fprintf(&sb, "\nPhotos: %d", n)
	}
	return sb.String()
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) ReportSubmitted(context.Context, *schema.Schema, *entity.Draft, string) error {
	return nil
}
