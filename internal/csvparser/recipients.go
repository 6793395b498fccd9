package csvparser

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"NotiFlow/internal/models"
)

// ParseRecipients parses a recipient CSV for bulk fan-out. The header
// row must contain an "Email" or "Phone" column (case-insensitive);
// an optional "UserID" column resolves preference/audit identity and
// every other column becomes per-recipient template data.
//
// maxRows limits how many data rows are parsed (excluding header).
func ParseRecipients(r io.Reader, maxRows int) ([]models.Recipient, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}
	if len(headers) == 0 {
		return nil, errors.New("csv header row is empty")
	}

	emailIdx, phoneIdx, userIdx := -1, -1, -1
	normalized := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		normalized[i] = h
		switch {
		case strings.EqualFold(h, "email"):
			emailIdx = i
		case strings.EqualFold(h, "phone"):
			phoneIdx = i
		case strings.EqualFold(h, "userid") || strings.EqualFold(h, "user_id"):
			userIdx = i
		}
	}
	if emailIdx == -1 && phoneIdx == -1 {
		return nil, errors.New("csv must contain an Email or Phone column")
	}

	if maxRows <= 0 {
		maxRows = 1000
	}

	recipients := make([]models.Recipient, 0)
	for len(recipients) < maxRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) != len(headers) {
			// skip malformed row
			continue
		}

		var rcpt models.Recipient
		if emailIdx >= 0 {
			rcpt.Email = strings.TrimSpace(record[emailIdx])
		}
		if phoneIdx >= 0 {
			rcpt.Phone = strings.TrimSpace(record[phoneIdx])
		}
		if userIdx >= 0 {
			rcpt.UserID = strings.TrimSpace(record[userIdx])
		}
		if rcpt.Email == "" && rcpt.Phone == "" {
			continue
		}

		data := make(map[string]interface{}, len(headers))
		for i := range record {
			if i == emailIdx || i == phoneIdx || i == userIdx {
				continue
			}
			key := normalized[i]
			if key == "" {
				continue
			}
			data[key] = strings.TrimSpace(record[i])
		}
		if len(data) > 0 {
			rcpt.Data = data
		}

		recipients = append(recipients, rcpt)
	}

	if len(recipients) == 0 {
		return nil, errors.New("csv must contain at least one data row")
	}

	return recipients, nil
}
