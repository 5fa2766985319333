package reporting

import (
	"encoding/csv"
	"strings"
	"time"

	"fee-reinvestor/internal/domain"
)

// RenderActivityCSV renders activity records as CSV string, in input order.
// Descriptions and errors are free text, so fields are quoted as needed.
func RenderActivityCSV(records []*domain.ActivityRecord) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	err := w.Write([]string{
		"id", "created_at", "wallet_id", "activity_type", "token_name",
		"amount_sol", "transaction_signature", "activity_description",
	})
	if err != nil {
		return "", err
	}

	for _, r := range records {
		err := w.Write([]string{
			r.ID,
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.WalletID,
			string(r.Type),
			r.TokenName,
			r.AmountSOL.StringFixed(9),
			r.Signature,
			r.Description,
		})
		if err != nil {
			return "", err
		}
	}

	w.Flush()
	return sb.String(), w.Error()
}
