package leads

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/lumen-webinar/backend/internal/funnel"
	"github.com/lumen-webinar/backend/internal/models"
)

var csvHeader = []string{"email", "name", "stage", "call_status", "joined_at"}

// RenderCSV writes a session's attendances as CSV. Stage labels are reported
// under the session's CTA type so exports match what the funnel view shows.
func RenderCSV(ctaType models.CtaType, attendances []models.Attendance) ([]byte, int, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, 0, fmt.Errorf("write csv header: %w", err)
	}
	for _, at := range attendances {
		email, name, callStatus := "", "", ""
		if at.Attendee != nil {
			email = at.Attendee.Email
			name = at.Attendee.Name
			callStatus = string(at.Attendee.CallStatus)
		}
		record := []string{
			email,
			name,
			string(funnel.NominalStage(ctaType, at.Stage)),
			callStatus,
			at.JoinedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return nil, 0, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, 0, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), len(attendances), nil
}
