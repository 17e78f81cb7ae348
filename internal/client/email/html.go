package email

import (
	"strings"
)

const defaultAppName = "Balako Digital CRM"

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

var lineBreaks = strings.NewReplacer(
	"\r\n", "<br>",
	"\n", "<br>",
)

// TextToHTML escapes text and wraps it in the standard email layout, turning
// line breaks into <br>. No character of text reaches the output unescaped.
func TextToHTML(text string) string {
	return renderTextHTML(defaultAppName, text)
}

func renderTextHTML(appName, text string) string {
	body := lineBreaks.Replace(htmlEscaper.Replace(text))
	brand := htmlEscaper.Replace(appName)

	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
    .email-container { background-color: #ffffff; border: 1px solid #e0e0e0; border-radius: 8px; padding: 30px; }
    .email-header { border-bottom: 3px solid #21808D; padding-bottom: 15px; margin-bottom: 20px; }
    .email-content { margin: 20px 0; }
    .email-footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #e0e0e0; font-size: 12px; color: #666; text-align: center; }
    .logo { color: #21808D; font-weight: bold; font-size: 18px; }
  </style>
</head>
<body>
  <div class="email-container">
    <div class="email-header">
      <div class="logo">`)
	b.WriteString(brand)
	b.WriteString(`</div>
    </div>
    <div class="email-content">
      `)
	b.WriteString(body)
	b.WriteString(`
    </div>
    <div class="email-footer">
      <p>Esta é uma mensagem automática do <strong>`)
	b.WriteString(brand)
	b.WriteString(`</strong></p>
      <p>Por favor, não responda este email.</p>
    </div>
  </div>
</body>
</html>`)
	return b.String()
}
