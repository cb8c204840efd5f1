package logging

import (
	"fmt"
	"log"
	"strings"
)

type CronLogger struct {
	// Implements gocron.Logger
}

func (c *CronLogger) Debug(msg string, args ...any) {
	c.write("DEBUG", msg, args...)
}

func (c *CronLogger) Error(msg string, args ...any) {
	c.write("ERROR", msg, args...)
}

func (c *CronLogger) Info(msg string, args ...any) {
	c.write("INFO", msg, args...)
}

func (c *CronLogger) Warn(msg string, args ...any) {
	c.write("WARN", msg, args...)
}

func (c *CronLogger) write(level string, msg string, args ...any) {
	log.Print(formatCronLine(level, msg, args...))
}

// formatCronLine renders gocron's structured key/value arguments after the message. gocron passes pairs like
// ("job", name, "error", err) rather than printf verbs.
func formatCronLine(level string, msg string, args ...any) string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("[cron | %s] %s", level, msg))
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			sb.WriteString(fmt.Sprintf(" %v=%v", args[i], args[i+1]))
		} else {
			sb.WriteString(fmt.Sprintf(" %v", args[i]))
		}
	}
	return sb.String()
}
