// Slack Alert 메시지 관련 메서드 정의
// DANGER 판정만 채널로 보내고 SAFE는 조용히 무시한다.

package client

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/railguard/backend/internal/model"
)

func (c *SlackClient) Name() string { return "slack" }

// Deliver - 저장된 Alert 이벤트를 Slack으로 전송 (service.AlertSink)
func (c *SlackClient) Deliver(ctx context.Context, event model.LiveAlertEvent) error {
	if event.FinalStatus != model.StatusDanger {
		return nil
	}
	if !c.IsConfigured() {
		return fmt.Errorf("slack bot token or channel ID not configured")
	}

	_, err := c.send(ctx, c.buildDangerMessage(event.Alert))
	return err
}

func (c *SlackClient) buildDangerMessage(alert model.Alert) SlackMessage {
	fields := []SlackField{
		{Title: "Trigger", Value: alert.TriggerReason, Short: true},
		{Title: "Alert ID", Value: fmt.Sprintf("#%d", alert.ID), Short: true},
		{Title: "YOLO", Value: fmt.Sprintf("%s (%.2f)", alert.YoloFlag, alert.YoloConfidence), Short: true},
		{Title: "Gemini", Value: fmt.Sprintf("%s (%.2f)", alert.GeminiStatus, alert.GeminiConfidence), Short: true},
		{Title: "Detected", Value: alert.Timestamp.UTC().Format(time.RFC3339), Short: false},
	}

	attachment := SlackAttachment{
		Color:  "#dc3545",
		Title:  fmt.Sprintf("🚨 [DANGER] 선로 위험 감지 (%s)", alert.TriggerReason),
		Text:   toSlackMarkdown(alert.GeminiReason),
		Fields: fields,
		Footer: "railguard",
		Ts:     alert.Timestamp.Unix(),
	}

	if link := c.imageLink(alert.ImageURL); link != "" {
		attachment.TitleLink = link
		attachment.ImageURL = link
	}

	return SlackMessage{
		Channel:     c.channelID,
		Text:        fmt.Sprintf("DANGER alert #%d (%s)", alert.ID, alert.TriggerReason),
		Attachments: []SlackAttachment{attachment},
	}
}

// imageLink - 저장소 상대 경로를 외부 접근 가능한 URL로 변환
func (c *SlackClient) imageLink(imageURL string) string {
	if imageURL == "" || c.publicBaseURL == "" {
		return ""
	}
	if strings.HasPrefix(imageURL, "http://") || strings.HasPrefix(imageURL, "https://") {
		return imageURL
	}
	return c.publicBaseURL + "/" + strings.TrimLeft(imageURL, "/")
}

var (
	codeSpanPattern = regexp.MustCompile("(?s)```.*?```|`[^`\n]*`")
	boldPattern     = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	headingPattern  = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
)

// Gemini 응답의 Markdown을 Slack mrkdwn으로 변환 (코드 영역은 그대로 둔다)
func toSlackMarkdown(text string) string {
	var b strings.Builder
	last := 0
	for _, loc := range codeSpanPattern.FindAllStringIndex(text, -1) {
		b.WriteString(convertMarkdown(text[last:loc[0]]))
		b.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(convertMarkdown(text[last:]))
	return b.String()
}

func convertMarkdown(s string) string {
	s = headingPattern.ReplaceAllString(s, "*$1*")
	return boldPattern.ReplaceAllString(s, "*$1*")
}
