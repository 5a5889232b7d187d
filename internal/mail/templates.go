package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

var htmlTemplates = template.Must(template.New("verification").Parse(`<!doctype html>
<html><body style="font-family:sans-serif">
<p>Hi {{.Name}},</p>
<p>Use this code to verify your Timber account:</p>
<p style="font-size:24px;letter-spacing:4px"><strong>{{.Code}}</strong></p>
<p>The code expires in {{.Minutes}} minutes.</p>
</body></html>`))

func init() {
	template.Must(htmlTemplates.New("password_reset").Parse(`<!doctype html>
<html><body style="font-family:sans-serif">
<p>Hi {{.Name}},</p>
<p>We received a request to reset your Timber password. Your code is:</p>
<p style="font-size:24px;letter-spacing:4px"><strong>{{.Code}}</strong></p>
<p>The code expires in {{.Minutes}} minutes. If you did not ask for this, ignore this email.</p>
</body></html>`))
}

type codeData struct {
	Name    string
	Code    string
	Minutes int
}

func VerificationMessage(name, address, code string, ttl time.Duration) (Message, error) {
	return codeMessage("verification", "Verify your Timber account", name, address, code, ttl,
		"Your Timber verification code is %s. It expires in %d minutes.")
}

func PasswordResetMessage(name, address, code string, ttl time.Duration) (Message, error) {
	return codeMessage("password_reset", "Reset your Timber password", name, address, code, ttl,
		"Your Timber password reset code is %s. It expires in %d minutes.")
}

func codeMessage(tmpl, subject, name, address, code string, ttl time.Duration, textFormat string) (Message, error) {
	data := codeData{Name: name, Code: code, Minutes: int(ttl.Round(time.Minute) / time.Minute)}
	var buf bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&buf, tmpl, data); err != nil {
		return Message{}, fmt.Errorf("render %s mail: %w", tmpl, err)
	}
	return Message{
		ToName:    name,
		ToAddress: address,
		Subject:   subject,
		Text:      fmt.Sprintf(textFormat, code, data.Minutes),
		HTML:      buf.String(),
	}, nil
}
