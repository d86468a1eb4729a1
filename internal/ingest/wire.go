package ingest

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/meghal86/smart-stake-hunter/internal/persistence"
)

// wireTransfer is the JSON shape both providers emit for a transfer event.
type wireTransfer struct {
	TS        time.Time              `json:"ts"`
	TxHash    string                 `json:"tx_hash"`
	From      string                 `json:"from"`
	To        string                 `json:"to"`
	Chain     string                 `json:"chain"`
	Token     string                 `json:"token"`
	Amount    float64                `json:"amount"`
	USDValue  float64                `json:"usd_value"`
	Direction string                 `json:"direction,omitempty"`
	VenueHint string                 `json:"venue_hint,omitempty"`
	IsCEX     bool                   `json:"is_cex,omitempty"`
	Raw       map[string]interface{} `json:"raw,omitempty"`
}

func (w wireTransfer) toTransfer(prov persistence.Provenance) persistence.WhaleTransfer {
	return persistence.WhaleTransfer{
		TS:         w.TS,
		TxHash:     w.TxHash,
		FromAddr:   w.From,
		ToAddr:     w.To,
		Chain:      w.Chain,
		Token:      w.Token,
		Amount:     w.Amount,
		USDValue:   w.USDValue,
		Direction:  w.Direction,
		VenueHint:  w.VenueHint,
		IsCEX:      w.IsCEX,
		Provenance: prov,
		Raw:        w.Raw,
	}
}

// newRESTClient builds the retrying HTTP client both providers use for
// backfill calls.
func newRESTClient(log zerolog.Logger) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = 15 * time.Second
	rc.Logger = nil
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			log.Debug().Str("url", req.URL.Path).Int("attempt", attempt).Msg("retrying backfill request")
		}
	}
	return rc.StandardClient()
}
