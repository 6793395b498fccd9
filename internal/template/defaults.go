package template

import (
	"fmt"
	"strings"
)

type builtinTemplate struct {
	Subject string
	Body    string
}

// builtins is the third resolution tier: a small table of defaults used
// when neither the store nor the filesystem has the template.
var builtins = map[string]builtinTemplate{
	"welcome": {
		Subject: "Welcome, {{name}}!",
		Body: `<html><body>
<h1>Welcome{{#if name}}, {{name}}{{/if}}!</h1>
<p>Your account is ready. We are glad to have you on board.</p>
</body></html>`,
	},
	"password-reset": {
		Subject: "Reset your password",
		Body: `<html><body>
<h1>Password reset</h1>
<p>Use the code below to reset your password:</p>
<p><strong>{{code}}</strong></p>
<p>If you did not request this, you can ignore this message.</p>
</body></html>`,
	},
	"otp": {
		Subject: "Your verification code",
		Body: `<html><body>
<p>Your one-time code is <strong>{{code}}</strong>. It expires in {{expiresIn}} minutes.</p>
</body></html>`,
	},
	"event-confirmation": {
		Subject: "You're confirmed for {{eventName}}",
		Body: `<html><body>
<h1>{{eventName}}</h1>
<p>Hi {{name}}, your registration is confirmed.</p>
{{#if gt ticketCount 1}}<p>This confirmation covers {{ticketCount}} tickets.</p>{{/if}}
{{#if amount}}<p>Amount paid: {{amount}}</p>{{/if}}
</body></html>`,
	},
	"transactional": {
		Subject: "{{subject}}",
		Body: `<html><body>
{{#if name}}<p>Hi {{name}},</p>{{/if}}
<p>{{message}}</p>
</body></html>`,
	},
}

// fallbackFields are the literal payload fields embedded in the last
// resort document, in render order.
var fallbackFields = []string{"name", "description", "amount", "eventName", "ticketCount"}

// fallbackRendered builds a minimal safe document from whatever literal
// fields are present, so a broken template never blocks delivery.
func fallbackRendered(name string, data map[string]interface{}) Rendered {
	var rows strings.Builder
	for _, field := range fallbackFields {
		v, ok := lookup(data, field)
		if !ok {
			continue
		}
		s := stringify(v)
		if s == "" {
			continue
		}
		rows.WriteString(fmt.Sprintf("<p>%s: %s</p>\n", field, s))
	}

	html := fmt.Sprintf(`<html><body>
<h1>Notification</h1>
%s</body></html>`, rows.String())

	return Rendered{
		Subject: humanize(name),
		HTML:    html,
		Text:    htmlToText(html),
	}
}

// humanize turns a template name like "password-reset" into a usable
// subject line.
func humanize(name string) string {
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	words := strings.Fields(name)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	if len(words) == 0 {
		return "Notification"
	}
	return strings.Join(words, " ")
}
