package notify

import (
	"encoding/json"
	"fmt"
	"time"
)

// RendererFor returns the renderer for a configured webhook type,
// falling back to the generic JSON contract for unknown types.
func RendererFor(webhookType, source string) Renderer {
	switch webhookType {
	case "feishu":
		return feishuRenderer{}
	case "dingtalk":
		return dingtalkRenderer{}
	case "wecom":
		return wecomRenderer{}
	case "slack":
		return slackRenderer{}
	default:
		return customRenderer{source: source}
	}
}

// customRenderer emits the generic alarm-notification JSON contract.
type customRenderer struct {
	source string
}

func (customRenderer) Name() string { return "custom" }

func (r customRenderer) Render(e Event) ([]byte, error) {
	if e.Kind == KindRenewalReminder {
		level := "warning"
		if e.DaysUntilRenewal == 0 {
			level = "critical"
		}
		return json.Marshal(map[string]any{
			"Type":     "SubscriptionReminder",
			"RuleName": e.SubscriptionName + " renewal reminder",
			"Level":    level,
			"Source":   r.source,
			"Resources": []map[string]any{{
				"SubscriptionName": e.SubscriptionName,
				"RenewalDay":       e.RenewalDay,
				"DaysUntilRenewal": e.DaysUntilRenewal,
				"NextRenewal":      e.NextRenewal.Format("2006-01-02"),
				"Amount":           e.Amount,
				"Currency":         e.Currency,
				"Message":          e.Text(),
			}},
		})
	}
	return json.Marshal(map[string]any{
		"Type":     "AlarmNotification",
		"RuleName": fmt.Sprintf("%s %s alarm", e.ProjectName, e.MeasureKind),
		"Level":    "critical",
		"Source":   r.source,
		"Resources": []map[string]any{{
			"ProjectName":  e.ProjectName,
			"Provider":     e.Provider,
			"BalanceType":  e.MeasureKind,
			"CurrentValue": e.Value,
			"Threshold":    e.Threshold,
			"Currency":     e.Currency,
			"Message":      e.Text(),
		}},
	})
}

// feishuRenderer emits a Feishu bot text message.
type feishuRenderer struct{}

func (feishuRenderer) Name() string { return "feishu" }

func (feishuRenderer) Render(e Event) ([]byte, error) {
	return json.Marshal(map[string]any{
		"msg_type": "text",
		"content":  map[string]string{"text": e.Text()},
	})
}

// dingtalkRenderer emits a DingTalk markdown message.
type dingtalkRenderer struct{}

func (dingtalkRenderer) Name() string { return "dingtalk" }

func (dingtalkRenderer) Render(e Event) ([]byte, error) {
	title := "Balance alarm"
	if e.Kind == KindRenewalReminder {
		title = "Renewal reminder"
	}
	return json.Marshal(map[string]any{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": title,
			"text":  fmt.Sprintf("## %s\n\n%s", title, e.Text()),
		},
	})
}

// wecomRenderer emits a WeCom (WeChat Work) markdown message.
type wecomRenderer struct{}

func (wecomRenderer) Name() string { return "wecom" }

func (wecomRenderer) Render(e Event) ([]byte, error) {
	return json.Marshal(map[string]any{
		"msgtype":  "markdown",
		"markdown": map[string]string{"content": e.Text()},
	})
}

// slackRenderer emits a Slack incoming-webhook attachment.
type slackRenderer struct{}

func (slackRenderer) Name() string { return "slack" }

func (slackRenderer) Render(e Event) ([]byte, error) {
	color := "#ff0000"
	title := "Balance Alert: " + e.ProjectName
	fields := []map[string]any{
		{"title": "Project", "value": e.ProjectName, "short": true},
		{"title": "Provider", "value": e.Provider, "short": true},
		{"title": "Current", "value": fmt.Sprintf("%.2f %s", e.Value, e.Currency), "short": true},
		{"title": "Threshold", "value": fmt.Sprintf("%.2f", e.Threshold), "short": true},
	}
	if e.Kind == KindRenewalReminder {
		color = "#ff9900"
		title = "Renewal Reminder: " + e.SubscriptionName
		fields = []map[string]any{
			{"title": "Subscription", "value": e.SubscriptionName, "short": true},
			{"title": "Due", "value": e.NextRenewal.Format("2006-01-02"), "short": true},
			{"title": "Days Left", "value": fmt.Sprintf("%d", e.DaysUntilRenewal), "short": true},
			{"title": "Amount", "value": fmt.Sprintf("%s %.2f", e.Currency, e.Amount), "short": true},
		}
	}
	return json.Marshal(map[string]any{
		"attachments": []map[string]any{{
			"color":  color,
			"title":  title,
			"fields": fields,
			"footer": "balance-alert",
			"ts":     time.Now().Unix(),
		}},
	})
}
