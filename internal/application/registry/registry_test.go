package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/marketplace-returns/internal/domain/notification"
)

type mockLogger struct {
	mu     sync.Mutex
	debugs []string
}

func (m *mockLogger) Debug(msg string, _ ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugs = append(m.debugs, msg)
}

func (m *mockLogger) Info(string, ...interface{}) {}

type mockTemplateRepo struct {
	templates []*notification.Template
	err       error
}

func (m *mockTemplateRepo) Upsert(context.Context, *notification.Template) error { return nil }
func (m *mockTemplateRepo) GetByCode(context.Context, string) (*notification.Template, error) {
	return nil, nil
}
func (m *mockTemplateRepo) ListActive(context.Context) ([]*notification.Template, error) {
	return m.templates, m.err
}

type mockTriggerRepo struct {
	triggers []*notification.EventTrigger
	err      error
}

func (m *mockTriggerRepo) Upsert(context.Context, *notification.EventTrigger) error { return nil }
func (m *mockTriggerRepo) GetByCode(context.Context, string) (*notification.EventTrigger, error) {
	return nil, nil
}
func (m *mockTriggerRepo) List(context.Context) ([]*notification.EventTrigger, error) {
	return m.triggers, m.err
}

func emailTemplate(code string, active bool) *notification.Template {
	return &notification.Template{
		Code:      code,
		Channel:   notification.ChannelEmail,
		Variables: []string{"return_number"},
		Active:    active,
		Content:   notification.EmailContent{Subject: "s", Body: "{{return_number}}"},
	}
}

func waTemplate(code string) *notification.Template {
	return &notification.Template{
		Code:      code,
		Channel:   notification.ChannelWhatsApp,
		Variables: []string{"return_number"},
		Active:    true,
		Content:   notification.StructuredContent{Body: "{{1}}"},
	}
}

func approvedTrigger(email, wa notification.ChannelBinding) *notification.EventTrigger {
	return &notification.EventTrigger{
		EventCode: "return.approved",
		Category:  "return",
		Channels: map[notification.Channel]notification.ChannelBinding{
			notification.ChannelEmail:    email,
			notification.ChannelWhatsApp: wa,
		},
	}
}

func TestRegistry_LookupBothChannels(t *testing.T) {
	r := New(nil, nil)
	r.Replace(
		[]*notification.EventTrigger{approvedTrigger(
			notification.ChannelBinding{Enabled: true, TemplateCode: "email_approved"},
			notification.ChannelBinding{Enabled: true, TemplateCode: "wa_approved"},
		)},
		[]*notification.Template{emailTemplate("email_approved", true), waTemplate("wa_approved")},
	)

	routes := r.Lookup("return.approved")

	require.Len(t, routes, 2)
	assert.Equal(t, notification.ChannelEmail, routes[0].Channel)
	assert.Equal(t, "email_approved", routes[0].Template.Code)
	assert.Equal(t, notification.ChannelWhatsApp, routes[1].Channel)
}

func TestRegistry_LookupSkipsSilently(t *testing.T) {
	tests := []struct {
		name      string
		email     notification.ChannelBinding
		wa        notification.ChannelBinding
		templates []*notification.Template
		want      []notification.Channel
	}{
		{
			name:      "disabled channel",
			email:     notification.ChannelBinding{Enabled: false, TemplateCode: "email_approved"},
			wa:        notification.ChannelBinding{Enabled: true, TemplateCode: "wa_approved"},
			templates: []*notification.Template{emailTemplate("email_approved", true), waTemplate("wa_approved")},
			want:      []notification.Channel{notification.ChannelWhatsApp},
		},
		{
			name:      "template reference unset",
			email:     notification.ChannelBinding{Enabled: true},
			wa:        notification.ChannelBinding{Enabled: true, TemplateCode: "wa_approved"},
			templates: []*notification.Template{waTemplate("wa_approved")},
			want:      []notification.Channel{notification.ChannelWhatsApp},
		},
		{
			name:      "inactive template is absent",
			email:     notification.ChannelBinding{Enabled: true, TemplateCode: "email_approved"},
			wa:        notification.ChannelBinding{},
			templates: []*notification.Template{emailTemplate("email_approved", false)},
			want:      nil,
		},
		{
			name:      "template bound to the wrong channel",
			email:     notification.ChannelBinding{Enabled: true, TemplateCode: "wa_approved"},
			wa:        notification.ChannelBinding{},
			templates: []*notification.Template{waTemplate("wa_approved")},
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &mockLogger{}
			r := New(nil, nil, WithLogger(logger))
			r.Replace([]*notification.EventTrigger{approvedTrigger(tt.email, tt.wa)}, tt.templates)

			var got []notification.Channel
			for _, route := range r.Lookup("return.approved") {
				got = append(got, route.Channel)
			}

			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, logger.debugs, "skips are logged at debug level")
		})
	}
}

func TestRegistry_UnknownEventIsNoop(t *testing.T) {
	r := New(nil, nil)
	assert.Empty(t, r.Lookup("return.teleported"))
}

func TestRegistry_SnapshotIsolation(t *testing.T) {
	r := New(nil, nil)
	r.Replace(
		[]*notification.EventTrigger{approvedTrigger(
			notification.ChannelBinding{Enabled: true, TemplateCode: "email_approved"},
			notification.ChannelBinding{},
		)},
		[]*notification.Template{emailTemplate("email_approved", true)},
	)

	inFlight := r.Lookup("return.approved")
	before := r.Snapshot()

	r.Replace(nil, nil)

	require.Len(t, inFlight, 1)
	assert.Equal(t, "email_approved", inFlight[0].Template.Code)
	_, ok := before.Trigger("return.approved")
	assert.True(t, ok, "old snapshot stays intact")
	assert.Empty(t, r.Lookup("return.approved"))
}

func TestRegistry_ReplaceCopiesInput(t *testing.T) {
	trig := approvedTrigger(notification.ChannelBinding{Enabled: true, TemplateCode: "email_approved"}, notification.ChannelBinding{})
	r := New(nil, nil)
	r.Replace([]*notification.EventTrigger{trig}, []*notification.Template{emailTemplate("email_approved", true)})

	trig.Channels[notification.ChannelEmail] = notification.ChannelBinding{}

	assert.Len(t, r.Lookup("return.approved"), 1)
}

func TestRegistry_Reload(t *testing.T) {
	templates := &mockTemplateRepo{templates: []*notification.Template{emailTemplate("email_approved", true)}}
	triggers := &mockTriggerRepo{triggers: []*notification.EventTrigger{approvedTrigger(
		notification.ChannelBinding{Enabled: true, TemplateCode: "email_approved"},
		notification.ChannelBinding{},
	)}}
	r := New(templates, triggers)

	require.NoError(t, r.Reload(context.Background()))

	assert.Len(t, r.Lookup("return.approved"), 1)
	assert.Equal(t, []string{"return.approved"}, r.Snapshot().EventCodes())
	assert.Equal(t, 1, r.Snapshot().TemplateCount())
}

func TestRegistry_ReloadErrorKeepsSnapshot(t *testing.T) {
	templates := &mockTemplateRepo{templates: []*notification.Template{emailTemplate("email_approved", true)}}
	triggers := &mockTriggerRepo{triggers: []*notification.EventTrigger{approvedTrigger(
		notification.ChannelBinding{Enabled: true, TemplateCode: "email_approved"},
		notification.ChannelBinding{},
	)}}
	r := New(templates, triggers)
	require.NoError(t, r.Reload(context.Background()))

	triggers.err = errors.New("db down")
	assert.Error(t, r.Reload(context.Background()))
	assert.Len(t, r.Lookup("return.approved"), 1)
}

func TestRegistry_ReloadWithoutRepositories(t *testing.T) {
	assert.Error(t, New(nil, nil).Reload(context.Background()))
}
