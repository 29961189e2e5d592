package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jhillyerd/enmime"
)

// emlHeaders are rendered ahead of the body so the validity gate sees them
var emlHeaders = []struct{ name, label string }{
	{"Subject", "Subject"},
	{"From", "From"},
	{"To", "To"},
	{"Cc", "Cc"},
	{"Date", "Sent"},
}

// extractEML renders the main headers followed by the text body
func extractEML(data []byte) (string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse MIME message: %w", err)
	}

	var sb strings.Builder
	for _, h := range emlHeaders {
		if value := strings.TrimSpace(env.GetHeader(h.name)); value != "" {
			fmt.Fprintf(&sb, "%s: %s\n", h.label, value)
		}
	}

	body := strings.TrimSpace(env.Text)
	if body != "" {
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(body)
	}

	return sb.String(), nil
}
