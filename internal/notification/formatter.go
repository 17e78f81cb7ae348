// Package notification renders task reminders for each delivery channel.
package notification

import (
	"bytes"
	"strings"
	"text/template"
	"time"

	"github.com/balakodigital/crm-notifier/internal/models"
)

const (
	// pt-BR short date and 24-hour clock.
	dateLayout = "02/01/2006"
	timeLayout = "15:04"

	DefaultAppName = "Balako Digital CRM"
)

// Email is a rendered reminder email.
type Email struct {
	Subject string
	Text    string
	HTML    string
}

// Formatter renders reminders with due dates shown in a fixed location.
type Formatter struct {
	appName  string
	location *time.Location
}

func NewFormatter(appName string, location *time.Location) *Formatter {
	if appName == "" {
		appName = DefaultAppName
	}
	if location == nil {
		location = time.UTC
	}
	return &Formatter{appName: appName, location: location}
}

// DueDate returns the pt-BR date and time strings for a task's due date.
func (f *Formatter) DueDate(t time.Time) (string, string) {
	local := t.In(f.location)
	return local.Format(dateLayout), local.Format(timeLayout)
}

// WhatsApp renders the reminder sent to the task's contact. An empty
// contactName drops the name from the greeting.
func (f *Formatter) WhatsApp(task models.Task, contactName string) string {
	date, clock := f.DueDate(task.DueDate)

	var b strings.Builder
	b.WriteString("🔔 *Lembrete de Task*\n\n")
	b.WriteString("Olá" + greetingName(contactName) + "! 👋\n\n")
	b.WriteString("Você tem uma task agendada para hoje:\n\n")
	b.WriteString("📋 *" + task.Title + "*\n")
	if desc := strings.TrimSpace(task.Description); desc != "" {
		b.WriteString("\n" + desc + "\n")
	}
	b.WriteString("\n📅 Data: " + date + "\n")
	b.WriteString("🕐 Hora: " + clock + "\n\n")
	b.WriteString("Por favor, não esqueça de completar esta task.\n\n")
	b.WriteString("_Mensagem automática do " + f.appName + "_")
	return b.String()
}

// Email renders the reminder sent to the assigned user.
func (f *Formatter) Email(task models.Task, userName string) Email {
	date, clock := f.DueDate(task.DueDate)
	desc := strings.TrimSpace(task.Description)

	var b strings.Builder
	b.WriteString("Olá" + greetingName(userName) + "!\n\n")
	b.WriteString("Você tem uma task agendada para hoje:\n\n")
	b.WriteString("Título: " + task.Title + "\n")
	if desc != "" {
		b.WriteString("Descrição: " + desc + "\n")
	}
	b.WriteString("\nData: " + date + "\n")
	b.WriteString("Hora: " + clock + "\n\n")
	b.WriteString("Por favor, não esqueça de completar esta task.\n\n")
	b.WriteString("---\n")
	b.WriteString("Mensagem automática do " + f.appName)

	return Email{
		Subject: "🔔 Lembrete: " + task.Title,
		Text:    b.String(),
		HTML: f.renderHTML(reminderView{
			AppName:     f.appName,
			UserName:    strings.TrimSpace(userName),
			Title:       task.Title,
			Description: desc,
			Date:        date,
			Time:        clock,
		}),
	}
}

func greetingName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return " " + name
}

type reminderView struct {
	AppName     string
	UserName    string
	Title       string
	Description string
	Date        string
	Time        string
}

func (f *Formatter) renderHTML(v reminderView) string {
	var buf bytes.Buffer
	// The template is fixed and the view only holds strings, so Execute
	// cannot fail short of a broken writer.
	_ = reminderHTML.Execute(&buf, v)
	return buf.String()
}

// Task content is internal CRM data and is embedded as-is.
var reminderHTML = template.Must(template.New("reminder").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #e0e0e0; border-radius: 8px; }
    .header { background-color: #21808D; color: white; padding: 20px; border-radius: 8px 8px 0 0; text-align: center; }
    .content { padding: 20px; background-color: #f9f9f9; }
    .task-info { background-color: white; padding: 15px; border-left: 4px solid #F59E0B; margin: 15px 0; }
    .footer { text-align: center; padding: 15px; color: #666; font-size: 12px; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h2>🔔 Lembrete de Task</h2>
    </div>
    <div class="content">
      <p>Olá{{if .UserName}} <strong>{{.UserName}}</strong>{{end}}! 👋</p>
      <p>Você tem uma task agendada para hoje:</p>
      <div class="task-info">
        <h3>📋 {{.Title}}</h3>
        {{- if .Description}}
        <p>{{.Description}}</p>
        {{- end}}
        <p><strong>📅 Data:</strong> {{.Date}}</p>
        <p><strong>🕐 Hora:</strong> {{.Time}}</p>
      </div>
      <p>Por favor, não esqueça de completar esta task.</p>
    </div>
    <div class="footer">
      <p>Mensagem automática do <strong>{{.AppName}}</strong></p>
    </div>
  </div>
</body>
</html>
`))
