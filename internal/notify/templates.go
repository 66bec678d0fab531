package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"otp-verification-service/internal/otp/domain"
)

const layoutHead = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
`

const layoutFoot = `{{if .DeviceName}}<p style="color: #666; font-size: 14px;">Requested from: {{.DeviceName}}</p>{{end}}
<p style="color: #666; font-size: 14px;">If you didn't request this code, please ignore this email.</p>
</body>
</html>
`

var templates = map[domain.Purpose]*template.Template{
	domain.PurposeVerification: template.Must(template.New("verification").Parse(layoutHead + `<h2>Verify your email</h2>
<p>Use the code below to verify your email address:</p>
<div style="background: #fff; padding: 20px; text-align: center; margin: 30px 0; border: 2px dashed #667eea;">
<h1 style="font-size: 40px; letter-spacing: 10px; color: #667eea; margin: 0;">{{.Code}}</h1>
</div>
<p>This code expires in <strong>{{.Minutes}} minutes</strong>.</p>
` + layoutFoot)),
	domain.PurposeReset: template.Must(template.New("reset").Parse(layoutHead + `<h2>Password reset request</h2>
<p>Use this code to reset your password:</p>
<div style="background: #e9ecef; padding: 15px; text-align: center; font-size: 24px; letter-spacing: 5px;"><strong>{{.Code}}</strong></div>
<p>Valid for {{.Minutes}} minutes only.</p>
` + layoutFoot)),
	"": template.Must(template.New("default").Parse(layoutHead + `<h2>Your one-time code</h2>
<p>Use the code below to proceed:</p>
<div style="background: #f4f4f4; padding: 15px; text-align: center; font-size: 24px; letter-spacing: 5px;"><strong>{{.Code}}</strong></div>
<p>This code is valid for {{.Minutes}} minutes.</p>
` + layoutFoot)),
}

var subjects = map[domain.Purpose]string{
	domain.PurposeVerification: "Email verification code",
	domain.PurposeReset:        "Password reset code",
	"":                         "Your one-time code",
}

type templateData struct {
	Title      string
	Code       string
	Minutes    int
	DeviceName string
}

// Render returns the subject and HTML body for msg. Purposes without a dedicated template use the default one.
func Render(msg Message) (subject, body string, err error) {
	key := msg.Purpose
	if _, ok := templates[key]; !ok {
		key = ""
	}
	minutes := int((msg.TTL + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	var buf bytes.Buffer
	err = templates[key].Execute(&buf, templateData{
		Title:      subjects[key],
		Code:       msg.Code,
		Minutes:    minutes,
		DeviceName: msg.DeviceName,
	})
	if err != nil {
		return "", "", fmt.Errorf("render %s email: %w", key, err)
	}
	return subjects[key], buf.String(), nil
}
