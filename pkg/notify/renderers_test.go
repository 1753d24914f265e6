package notify_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itswl/balance-alert/pkg/notify"
)

func renewalEvent() notify.Event {
	return notify.Event{
		Kind:             notify.KindRenewalReminder,
		Subject:          "netflix",
		SubscriptionName: "netflix",
		RenewalDay:       15,
		DaysUntilRenewal: 2,
		NextRenewal:      time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC),
		Amount:           39.9,
		Currency:         "CNY",
	}
}

func TestRendererFor_UnknownFallsBackToCustom(t *testing.T) {
	r := notify.RendererFor("telegram", "balance-alert")
	assert.Equal(t, "custom", r.Name())
}

func TestCustomRenderer_LowBalance(t *testing.T) {
	r := notify.RendererFor("custom", "credit-monitor")
	body, err := r.Render(notify.Event{
		Kind:        notify.KindLowBalance,
		ProjectName: "Volc Prod",
		Provider:    "volc",
		MeasureKind: "balance",
		Value:       80,
		Threshold:   100,
		Currency:    "CNY",
	})
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "AlarmNotification", payload["Type"])
	assert.Equal(t, "critical", payload["Level"])
	assert.Equal(t, "credit-monitor", payload["Source"])

	resources := payload["Resources"].([]any)
	require.Len(t, resources, 1)
	resource := resources[0].(map[string]any)
	assert.Equal(t, "Volc Prod", resource["ProjectName"])
	assert.EqualValues(t, 80, resource["CurrentValue"])
	assert.EqualValues(t, 100, resource["Threshold"])
}

func TestCustomRenderer_Renewal(t *testing.T) {
	r := notify.RendererFor("custom", "credit-monitor")
	body, err := r.Render(renewalEvent())
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "SubscriptionReminder", payload["Type"])
	assert.Equal(t, "warning", payload["Level"])

	resource := payload["Resources"].([]any)[0].(map[string]any)
	assert.Equal(t, "netflix", resource["SubscriptionName"])
	assert.EqualValues(t, 2, resource["DaysUntilRenewal"])
	assert.Equal(t, "2025-06-15", resource["NextRenewal"])
}

func TestCustomRenderer_RenewalDueToday(t *testing.T) {
	e := renewalEvent()
	e.DaysUntilRenewal = 0

	body, err := notify.RendererFor("custom", "").Render(e)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "critical", payload["Level"])
}

func TestFeishuRenderer(t *testing.T) {
	body, err := notify.RendererFor("feishu", "").Render(renewalEvent())
	require.NoError(t, err)

	var payload struct {
		MsgType string `json:"msg_type"`
		Content struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "text", payload.MsgType)
	assert.Contains(t, payload.Content.Text, "netflix")
	assert.Contains(t, payload.Content.Text, "in 2 days")
}

func TestDingtalkRenderer(t *testing.T) {
	body, err := notify.RendererFor("dingtalk", "").Render(renewalEvent())
	require.NoError(t, err)

	var payload struct {
		MsgType  string `json:"msgtype"`
		Markdown struct {
			Title string `json:"title"`
			Text  string `json:"text"`
		} `json:"markdown"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "markdown", payload.MsgType)
	assert.Equal(t, "Renewal reminder", payload.Markdown.Title)
}

func TestWecomRenderer(t *testing.T) {
	body, err := notify.RendererFor("wecom", "").Render(renewalEvent())
	require.NoError(t, err)

	var payload struct {
		MsgType  string `json:"msgtype"`
		Markdown struct {
			Content string `json:"content"`
		} `json:"markdown"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "markdown", payload.MsgType)
	assert.NotEmpty(t, payload.Markdown.Content)
}

func TestSlackRenderer(t *testing.T) {
	body, err := notify.RendererFor("slack", "").Render(notify.Event{
		Kind:        notify.KindLowBalance,
		ProjectName: "prod",
		Provider:    "uniapi",
		Value:       10,
		Threshold:   50,
		Currency:    "USD",
	})
	require.NoError(t, err)

	var payload struct {
		Attachments []struct {
			Color  string           `json:"color"`
			Title  string           `json:"title"`
			Fields []map[string]any `json:"fields"`
		} `json:"attachments"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.Len(t, payload.Attachments, 1)
	assert.Contains(t, payload.Attachments[0].Title, "prod")
	assert.Len(t, payload.Attachments[0].Fields, 4)
}

func TestEventText(t *testing.T) {
	e := renewalEvent()
	e.DaysUntilRenewal = 1
	assert.Contains(t, e.Text(), "tomorrow")

	e.DaysUntilRenewal = 0
	assert.Contains(t, e.Text(), "today")
}
