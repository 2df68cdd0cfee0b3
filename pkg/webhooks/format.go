package webhooks

import (
	"encoding/json"
	"fmt"

	"github.com/platinummonkey/helpdesk-rbac/pkg/audit"
)

// Format selects the payload shape sent to an endpoint
type Format string

const (
	FormatJSON  Format = "json"
	FormatSlack Format = "slack"
	FormatTeams Format = "teams"
)

// SlackMessage is a Slack incoming-webhook payload
type SlackMessage struct {
	Text        string            `json:"text"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment is one colored block of a Slack message
type SlackAttachment struct {
	Color  string       `json:"color,omitempty"`
	Fields []SlackField `json:"fields,omitempty"`
}

// SlackField is a title/value pair in an attachment
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// TeamsMessage is a Microsoft Teams MessageCard
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	Summary    string         `json:"summary"`
	Title      string         `json:"title"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

// TeamsSection groups facts on a card
type TeamsSection struct {
	Text  string      `json:"text,omitempty"`
	Facts []TeamsFact `json:"facts,omitempty"`
}

// TeamsFact is a name/value pair on a card
type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ParseFormat maps a configured name to a Format
func ParseFormat(name string) (Format, error) {
	switch f := Format(name); f {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatSlack, FormatTeams:
		return f, nil
	default:
		return "", fmt.Errorf("unknown webhook format %q (must be json, slack, or teams)", name)
	}
}

func encode(format Format, n *Notification) ([]byte, error) {
	switch format {
	case FormatSlack:
		return json.Marshal(SlackMessage{
			Text: summary(n.Event),
			Attachments: []SlackAttachment{{
				Color:  color(n.Event.Status),
				Fields: slackFields(n.Event),
			}},
		})
	case FormatTeams:
		return json.Marshal(TeamsMessage{
			Type:       "MessageCard",
			Context:    "https://schema.org/extensions",
			Summary:    summary(n.Event),
			Title:      summary(n.Event),
			ThemeColor: color(n.Event.Status)[1:],
			Sections:   []TeamsSection{{Text: n.Event.Message, Facts: teamsFacts(n.Event)}},
		})
	default:
		return json.Marshal(n)
	}
}

func summary(e *audit.Event) string {
	return fmt.Sprintf("[helpdesk-rbac] %s (%s) by %s", e.EventType, e.Status, e.Actor)
}

func color(status audit.EventStatus) string {
	switch status {
	case audit.EventStatusSuccess:
		return "#2eb67d"
	case audit.EventStatusDenied:
		return "#ecb22e"
	default:
		return "#e01e5a"
	}
}

func facts(e *audit.Event) [][2]string {
	out := [][2]string{{"Event", string(e.EventType)}, {"Actor", e.Actor}}
	if e.ResourceID != "" {
		out = append(out, [2]string{"Resource", string(e.ResourceType) + " " + e.ResourceID})
	}
	if e.RequestID != "" {
		out = append(out, [2]string{"Request", e.RequestID})
	}
	return out
}

func slackFields(e *audit.Event) []SlackField {
	var fields []SlackField
	for _, f := range facts(e) {
		fields = append(fields, SlackField{Title: f[0], Value: f[1], Short: true})
	}
	if e.Message != "" {
		fields = append(fields, SlackField{Title: "Message", Value: e.Message})
	}
	return fields
}

func teamsFacts(e *audit.Event) []TeamsFact {
	var out []TeamsFact
	for _, f := range facts(e) {
		out = append(out, TeamsFact{Name: f[0], Value: f[1]})
	}
	return out
}
